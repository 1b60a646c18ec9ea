package handlers

import (
	"errors"
	"net/http"

	"github.com/LegalDragon/pickleball-community/services"
)

// PhaseHandler обслуживает слоты, байи и игровые настройки одной фазы.
type PhaseHandler struct {
	slotService         services.SlotService
	gameSettingsService services.GameSettingsService
}

func NewPhaseHandler(ss services.SlotService, gs services.GameSettingsService) *PhaseHandler {
	return &PhaseHandler{slotService: ss, gameSettingsService: gs}
}

type AssignSlotRequest struct {
	UnitID int `json:"unit_id"`
}

func phaseSlotParams(r *http.Request) (int, int, error) {
	phaseID, err := intURLParam(r, "phaseID")
	if err != nil {
		return 0, 0, err
	}
	slotNumber, err := intURLParam(r, "slotNumber")
	if err != nil {
		return 0, 0, err
	}
	return phaseID, slotNumber, nil
}

// GetByes godoc
// @Summary Байи фазы
// @Tags phases
// @Produce json
// @Param phaseID path int true "ID фазы"
// @Success 200 {object} services.PhaseByes
// @Failure 404 {object} map[string]string "Фаза не найдена"
// @Router /phases/{phaseID}/byes [get]
func (h *PhaseHandler) GetByes(w http.ResponseWriter, r *http.Request) {
	phaseID, err := intURLParam(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	byes, err := h.slotService.GetByes(r.Context(), phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, byes, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AssignSlot godoc
// @Summary Вручную поставить команду в слот
// @Tags phases
// @Accept json
// @Produce json
// @Param phaseID path int true "ID фазы"
// @Param slotNumber path int true "Номер слота"
// @Param body body AssignSlotRequest true "Команда"
// @Success 200 {object} services.PhaseByes
// @Failure 404 {object} map[string]string "Фаза или слот не найдены"
// @Failure 409 {object} map[string]string "Команда уже стоит в другом слоте"
// @Failure 422 {object} map[string]string "Команда не из этого дивизиона"
// @Security BearerAuth
// @Router /phases/{phaseID}/slots/{slotNumber} [put]
func (h *PhaseHandler) AssignSlot(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	phaseID, slotNumber, err := phaseSlotParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req AssignSlotRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.UnitID <= 0 {
		badRequestResponse(w, r, errors.New("unit_id is required"))
		return
	}

	byes, err := h.slotService.AssignSlot(r.Context(), actor, phaseID, slotNumber, req.UnitID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, byes, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearSlot godoc
// @Summary Освободить слот
// @Tags phases
// @Produce json
// @Param phaseID path int true "ID фазы"
// @Param slotNumber path int true "Номер слота"
// @Success 200 {object} services.PhaseByes
// @Failure 404 {object} map[string]string "Фаза или слот не найдены"
// @Security BearerAuth
// @Router /phases/{phaseID}/slots/{slotNumber} [delete]
func (h *PhaseHandler) ClearSlot(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	phaseID, slotNumber, err := phaseSlotParams(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	byes, err := h.slotService.ClearSlot(r.Context(), actor, phaseID, slotNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, byes, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecomputeByes godoc
// @Summary Пересчитать байи дивизиона
// @Tags phases
// @Description Заново проводит команды через пустые слоты и перезаписывает флаги баев. Только для администраторов.
// @Produce json
// @Param divisionID path int true "ID дивизиона"
// @Success 200 {object} brackets.ByeResolution
// @Failure 404 {object} map[string]string "У дивизиона нет расписания"
// @Security BearerAuth
// @Router /divisions/{divisionID}/byes/recompute [post]
func (h *PhaseHandler) RecomputeByes(w http.ResponseWriter, r *http.Request) {
	divisionID, err := intURLParam(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	res, err := h.slotService.RecomputeByes(r.Context(), divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetGameSettings godoc
// @Summary Игровые настройки фазы
// @Tags phases
// @Description Best-of и формат счёта с откатом: переопределение фазы для формата, фаза, формат матча, дивизион, глобальные значения.
// @Produce json
// @Param phaseID path int true "ID фазы"
// @Param match_format_id query int false "ID формата матча"
// @Success 200 {object} models.GameSettings
// @Router /phases/{phaseID}/game-settings [get]
func (h *PhaseHandler) GetGameSettings(w http.ResponseWriter, r *http.Request) {
	phaseID, err := intURLParam(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchFormatID, err := optionalIntQuery(r, "match_format_id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	settings := h.gameSettingsService.ResolveGameSettings(r.Context(), phaseID, matchFormatID)
	if err := writeJSON(w, http.StatusOK, settings, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
