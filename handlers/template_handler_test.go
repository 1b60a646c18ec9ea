package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
	"github.com/LegalDragon/pickleball-community/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type templateServiceMock struct{ mock.Mock }

func (m *templateServiceMock) ListTemplates(ctx context.Context, filter repositories.TemplateFilter) ([]services.TemplateView, error) {
	args := m.Called(ctx, filter)
	out, _ := args.Get(0).([]services.TemplateView)
	return out, args.Error(1)
}

func (m *templateServiceMock) GetTemplate(ctx context.Context, id int) (*services.TemplateView, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*services.TemplateView)
	return out, args.Error(1)
}

func (m *templateServiceMock) CreateTemplate(ctx context.Context, actor services.Actor, input services.CreateTemplateInput) (*services.TemplateView, error) {
	args := m.Called(ctx, actor, input)
	out, _ := args.Get(0).(*services.TemplateView)
	return out, args.Error(1)
}

func (m *templateServiceMock) UpdateTemplate(ctx context.Context, actor services.Actor, id int, input services.UpdateTemplateInput) (*services.TemplateView, error) {
	args := m.Called(ctx, actor, id, input)
	out, _ := args.Get(0).(*services.TemplateView)
	return out, args.Error(1)
}

func (m *templateServiceMock) DeleteTemplate(ctx context.Context, actor services.Actor, id int) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *templateServiceMock) PreviewTemplate(ctx context.Context, id int, units *int) (*services.ScheduleOutput, error) {
	args := m.Called(ctx, id, units)
	out, _ := args.Get(0).(*services.ScheduleOutput)
	return out, args.Error(1)
}

func (m *templateServiceMock) SeedSystemTemplates(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func templateView(id int, name string) *services.TemplateView {
	return &services.TemplateView{
		PhaseTemplate: &models.PhaseTemplate{
			ID:           id,
			Name:         name,
			Category:     models.CategorySingleElimination,
			MinUnits:     4,
			MaxUnits:     16,
			DefaultUnits: 8,
		},
		Structure: json.RawMessage(`{"phases":[{"type":"bracket"}]}`),
	}
}

func TestTemplateHandler_CreateTemplate(t *testing.T) {
	svc := new(templateServiceMock)
	h := NewTemplateHandler(svc)

	named := func(name string) interface{} {
		return mock.MatchedBy(func(in services.CreateTemplateInput) bool { return in.Name == name })
	}
	svc.On("CreateTemplate", mock.Anything, organizer, named("Club Cup")).Return(templateView(31, "Club Cup"), nil).Once()
	svc.On("CreateTemplate", mock.Anything, organizer, named("Broken")).Return(nil, services.ErrInvalidStructure).Once()

	body := `{"name":"Club Cup","category":"SingleElimination","min_units":4,"max_units":16,"structure":{"phases":[{"type":"bracket"}]}}`
	rec := serve(http.MethodPost, "/templates", "/templates", body, h.CreateTemplate, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/templates/31", rec.Header().Get("Location"))
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Club Cup", created["name"])
	assert.NotNil(t, created["structure"])

	body = `{"name":"Broken","category":"SingleElimination","min_units":4,"max_units":16,"structure":{"phases":[]}}`
	rec = serve(http.MethodPost, "/templates", "/templates", body, h.CreateTemplate, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := serve(http.MethodPost, "/templates", "/templates", `{"name":"x"}`, h.CreateTemplate, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("malformed body", func(t *testing.T) {
		rec := serve(http.MethodPost, "/templates", "/templates", `{"name":`, h.CreateTemplate, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	svc.AssertExpectations(t)
}

func TestTemplateHandler_GetAndList(t *testing.T) {
	svc := new(templateServiceMock)
	h := NewTemplateHandler(svc)
	units := 6
	category := models.CategorySingleElimination
	svc.On("GetTemplate", mock.Anything, 31).Return(templateView(31, "Club Cup"), nil).Once()
	svc.On("GetTemplate", mock.Anything, 99).Return(nil, services.ErrTemplateNotFound).Once()
	svc.On("ListTemplates", mock.Anything, repositories.TemplateFilter{Category: &category, Units: &units}).
		Return(nil, nil).Once()

	rec := serve(http.MethodGet, "/templates/{templateID}", "/templates/31", "", h.GetTemplate, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(http.MethodGet, "/templates/{templateID}", "/templates/99", "", h.GetTemplate, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodGet, "/templates", "/templates?category=SingleElimination&units=6", "", h.ListTemplates, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(http.MethodGet, "/templates", "/templates?category=Ladder", "", h.ListTemplates, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestTemplateHandler_DeleteTemplate(t *testing.T) {
	svc := new(templateServiceMock)
	h := NewTemplateHandler(svc)
	svc.On("DeleteTemplate", mock.Anything, organizer, 31).Return(nil).Once()
	svc.On("DeleteTemplate", mock.Anything, organizer, 1).Return(services.ErrSystemTemplateFixed).Once()
	svc.On("DeleteTemplate", mock.Anything, organizer, 32).Return(services.ErrTemplateInUse).Once()

	rec := serve(http.MethodDelete, "/templates/{templateID}", "/templates/31", "", h.DeleteTemplate, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(http.MethodDelete, "/templates/{templateID}", "/templates/1", "", h.DeleteTemplate, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(http.MethodDelete, "/templates/{templateID}", "/templates/32", "", h.DeleteTemplate, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(http.MethodDelete, "/templates/{templateID}", "/templates/31", "", h.DeleteTemplate, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertExpectations(t)
}
