package handlers

import (
	"errors"
	"net/http"

	"github.com/LegalDragon/pickleball-community/services"
)

type ScheduleHandler struct {
	scheduleService services.ScheduleService
}

func NewScheduleHandler(ss services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: ss}
}

// GenerateSchedule godoc
// @Summary Сгенерировать расписание дивизиона
// @Tags schedule
// @Description Разворачивает шаблон в фазы, слоты, матчи и правила продвижения. Без unit_count берётся число подтверждённых команд дивизиона.
// @Accept json
// @Produce json
// @Param divisionID path int true "ID дивизиона"
// @Param body body services.GenerateScheduleInput true "Шаблон и параметры генерации"
// @Success 201 {object} services.ScheduleOutput
// @Failure 400 {object} map[string]string "Некорректный запрос"
// @Failure 404 {object} map[string]string "Дивизион или шаблон не найден"
// @Failure 409 {object} map[string]string "Расписание уже существует"
// @Failure 422 {object} map[string]string "Число команд вне диапазона шаблона"
// @Security BearerAuth
// @Router /divisions/{divisionID}/schedule [post]
func (h *ScheduleHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	divisionID, err := intURLParam(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.GenerateScheduleInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TemplateID <= 0 {
		badRequestResponse(w, r, errors.New("template_id is required"))
		return
	}

	out, err := h.scheduleService.GenerateSchedule(r.Context(), actor, divisionID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, out, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetSchedule godoc
// @Summary Получить расписание дивизиона
// @Tags schedule
// @Produce json
// @Param divisionID path int true "ID дивизиона"
// @Success 200 {object} services.DivisionSchedule
// @Failure 404 {object} map[string]string "Расписание не найдено"
// @Router /divisions/{divisionID}/schedule [get]
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	divisionID, err := intURLParam(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	schedule, err := h.scheduleService.GetSchedule(r.Context(), divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, schedule, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
