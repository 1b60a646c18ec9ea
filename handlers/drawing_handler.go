package handlers

import (
	"errors"
	"net/http"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/services"
	"github.com/go-chi/chi/v5"
)

type DrawingHandler struct {
	drawingService services.DrawingService
}

func NewDrawingHandler(ds services.DrawingService) *DrawingHandler {
	return &DrawingHandler{drawingService: ds}
}

type ConfirmDrawingRequest struct {
	Assignments []models.DrawnUnit `json:"assignments"`
}

func sessionIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "sessionID")
	if id == "" {
		return "", errors.New("missing sessionID parameter")
	}
	return id, nil
}

// StartDrawing godoc
// @Summary Начать жеребьёвку дивизиона
// @Tags drawing
// @Description Перемешивает подтверждённые команды для первой фазы. Незавершённая сессия возобновляется.
// @Produce json
// @Param divisionID path int true "ID дивизиона"
// @Success 201 {object} services.DrawingState
// @Failure 404 {object} map[string]string "Расписание не найдено"
// @Failure 409 {object} map[string]string "Жеребьёвка уже подтверждена"
// @Failure 422 {object} map[string]string "Нет подходящих команд"
// @Security BearerAuth
// @Router /divisions/{divisionID}/drawing [post]
func (h *DrawingHandler) StartDrawing(w http.ResponseWriter, r *http.Request) {
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
	state, err := h.drawingService.StartDrawing(r.Context(), actor, divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetDrawingState godoc
// @Summary Текущее состояние жеребьёвки
// @Tags drawing
// @Produce json
// @Param divisionID path int true "ID дивизиона"
// @Success 200 {object} services.DrawingState
// @Router /divisions/{divisionID}/drawing [get]
func (h *DrawingHandler) GetDrawingState(w http.ResponseWriter, r *http.Request) {
	divisionID, err := intURLParam(r, "divisionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	state, err := h.drawingService.GetDrawingState(r.Context(), divisionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DrawNext godoc
// @Summary Вытянуть следующую команду
// @Tags drawing
// @Produce json
// @Param sessionID path string true "ID сессии жеребьёвки"
// @Success 200 {object} services.DrawStep
// @Failure 403 {object} map[string]string "Сессию ведёт другой пользователь"
// @Failure 404 {object} map[string]string "Сессия не найдена"
// @Failure 409 {object} map[string]string "Сессия изменена параллельно"
// @Failure 422 {object} map[string]string "Жеребьёвка не идёт"
// @Security BearerAuth
// @Router /drawings/{sessionID}/next [post]
func (h *DrawingHandler) DrawNext(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	step, err := h.drawingService.DrawNext(r.Context(), actor, sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, step, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmDrawing godoc
// @Summary Подтвердить жеребьёвку
// @Tags drawing
// @Description Записывает команды в слоты первой фазы и пересчитывает байи. Назначения должны совпадать с вытянутыми.
// @Accept json
// @Produce json
// @Param sessionID path string true "ID сессии жеребьёвки"
// @Param body body ConfirmDrawingRequest true "Пары команда-слот"
// @Success 200 {object} services.ConfirmResult
// @Failure 409 {object} map[string]string "Жеребьёвка уже подтверждена или слоты заняты"
// @Failure 422 {object} map[string]string "Жеребьёвка не завершена"
// @Security BearerAuth
// @Router /drawings/{sessionID}/confirm [post]
func (h *DrawingHandler) ConfirmDrawing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req ConfirmDrawingRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	res, err := h.drawingService.ConfirmDrawing(r.Context(), actor, sessionID, req.Assignments)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Redraw godoc
// @Summary Перетянуть жеребьёвку
// @Tags drawing
// @Description Сбрасывает вытянутые пары и перемешивает команды заново. После подтверждения недоступно.
// @Produce json
// @Param sessionID path string true "ID сессии жеребьёвки"
// @Success 200 {object} services.DrawingState
// @Failure 409 {object} map[string]string "Жеребьёвка уже подтверждена"
// @Security BearerAuth
// @Router /drawings/{sessionID}/redraw [post]
func (h *DrawingHandler) Redraw(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	sessionID, err := sessionIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	state, err := h.drawingService.Redraw(r.Context(), actor, sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
