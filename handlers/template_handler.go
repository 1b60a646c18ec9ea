package handlers

import (
	"fmt"
	"net/http"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
	"github.com/LegalDragon/pickleball-community/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(ts services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: ts}
}

// ListTemplates godoc
// @Summary Список шаблонов фаз
// @Tags templates
// @Description Возвращает системные и пользовательские шаблоны. Фильтр units оставляет шаблоны, допускающие столько команд.
// @Produce json
// @Param category query string false "Категория (SingleElimination, DoubleElimination, Pools, RoundRobin, Award, Draw)"
// @Param units query int false "Количество команд"
// @Success 200 {array} services.TemplateView
// @Failure 400 {object} map[string]string "Некорректные параметры"
// @Failure 500 {object} map[string]string "Внутренняя ошибка сервера"
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var filter repositories.TemplateFilter
	if raw := r.URL.Query().Get("category"); raw != "" {
		category := models.TemplateCategory(raw)
		if !category.IsValid() {
			badRequestResponse(w, r, fmt.Errorf("unknown category %q", raw))
			return
		}
		filter.Category = &category
	}
	units, err := optionalIntQuery(r, "units")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	filter.Units = units

	templates, err := h.templateService.ListTemplates(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if templates == nil {
		templates = []services.TemplateView{}
	}
	if err := writeJSON(w, http.StatusOK, templates, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetTemplate godoc
// @Summary Получить шаблон по ID
// @Tags templates
// @Produce json
// @Param templateID path int true "ID шаблона"
// @Success 200 {object} services.TemplateView
// @Failure 404 {object} map[string]string "Шаблон не найден"
// @Router /templates/{templateID} [get]
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := intURLParam(r, "templateID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tmpl, err := h.templateService.GetTemplate(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, tmpl, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PreviewTemplate godoc
// @Summary Предпросмотр расписания по шаблону
// @Tags templates
// @Description Разворачивает шаблон для заданного числа команд без сохранения. Без units используется default_units шаблона.
// @Produce json
// @Param templateID path int true "ID шаблона"
// @Param units query int false "Количество команд"
// @Success 200 {object} services.ScheduleOutput
// @Failure 404 {object} map[string]string "Шаблон не найден"
// @Failure 422 {object} map[string]string "Число команд вне диапазона шаблона"
// @Router /templates/{templateID}/preview [get]
func (h *TemplateHandler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := intURLParam(r, "templateID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	units, err := optionalIntQuery(r, "units")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	out, err := h.templateService.PreviewTemplate(r.Context(), id, units)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, out, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateTemplate godoc
// @Summary Создать шаблон
// @Tags templates
// @Description Структура проверяется для каждого числа команд в диапазоне min_units..max_units.
// @Accept json
// @Produce json
// @Param body body services.CreateTemplateInput true "Данные шаблона"
// @Success 201 {object} services.TemplateView
// @Failure 400 {object} map[string]string "Некорректный JSON"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 409 {object} map[string]string "Имя уже занято"
// @Failure 422 {object} map[string]string "Ошибка валидации"
// @Security BearerAuth
// @Router /templates [post]
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	var input services.CreateTemplateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tmpl, err := h.templateService.CreateTemplate(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/templates/%d", tmpl.ID))
	if err := writeJSON(w, http.StatusCreated, tmpl, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateTemplate godoc
// @Summary Обновить шаблон
// @Tags templates
// @Description Менять шаблон может только создатель или администратор. Системные шаблоны неизменяемы.
// @Accept json
// @Produce json
// @Param templateID path int true "ID шаблона"
// @Param body body services.UpdateTemplateInput true "Изменяемые поля"
// @Success 200 {object} services.TemplateView
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 404 {object} map[string]string "Шаблон не найден"
// @Failure 422 {object} map[string]string "Ошибка валидации"
// @Security BearerAuth
// @Router /templates/{templateID} [put]
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := intURLParam(r, "templateID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.UpdateTemplateInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tmpl, err := h.templateService.UpdateTemplate(r.Context(), actor, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, tmpl, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteTemplate godoc
// @Summary Удалить шаблон
// @Tags templates
// @Param templateID path int true "ID шаблона"
// @Success 204 "Шаблон удалён"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 404 {object} map[string]string "Шаблон не найден"
// @Failure 409 {object} map[string]string "Шаблон используется расписанием"
// @Security BearerAuth
// @Router /templates/{templateID} [delete]
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := intURLParam(r, "templateID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.templateService.DeleteTemplate(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
