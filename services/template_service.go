package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

// maxTemplateUnits bounds the range a template may declare; every count in
// the range is resolved during validation.
const maxTemplateUnits = 256

var (
	ErrTemplateNameRequired = errors.New("template name is required")
	ErrInvalidCategory      = errors.New("invalid template category")
	ErrInvalidUnitRange     = errors.New("invalid template unit range")
)

type TemplateService interface {
	ListTemplates(ctx context.Context, filter repositories.TemplateFilter) ([]TemplateView, error)
	GetTemplate(ctx context.Context, id int) (*TemplateView, error)
	CreateTemplate(ctx context.Context, actor Actor, input CreateTemplateInput) (*TemplateView, error)
	UpdateTemplate(ctx context.Context, actor Actor, id int, input UpdateTemplateInput) (*TemplateView, error)
	DeleteTemplate(ctx context.Context, actor Actor, id int) error
	PreviewTemplate(ctx context.Context, id int, units *int) (*ScheduleOutput, error)
	SeedSystemTemplates(ctx context.Context) (int, error)
}

// TemplateView is a template with its structure decoded for clients.
type TemplateView struct {
	*models.PhaseTemplate
	Structure json.RawMessage `json:"structure"`
}

type CreateTemplateInput struct {
	Name         string                  `json:"name" validate:"required"`
	Category     models.TemplateCategory `json:"category" validate:"required"`
	MinUnits     int                     `json:"min_units" validate:"required"`
	MaxUnits     int                     `json:"max_units" validate:"required"`
	DefaultUnits int                     `json:"default_units"`
	Structure    json.RawMessage         `json:"structure" validate:"required"`
	DiagramText  *string                 `json:"diagram_text,omitempty"`
}

// Все поля - указатели: nil означает "не менять".
type UpdateTemplateInput struct {
	Name         *string                  `json:"name,omitempty"`
	Category     *models.TemplateCategory `json:"category,omitempty"`
	MinUnits     *int                     `json:"min_units,omitempty"`
	MaxUnits     *int                     `json:"max_units,omitempty"`
	DefaultUnits *int                     `json:"default_units,omitempty"`
	Structure    *json.RawMessage         `json:"structure,omitempty"`
	DiagramText  *string                  `json:"diagram_text,omitempty"`
}

type templateService struct {
	templateRepo repositories.TemplateRepository
	logger       *slog.Logger
}

func NewTemplateService(templateRepo repositories.TemplateRepository, logger *slog.Logger) TemplateService {
	return &templateService{templateRepo: templateRepo, logger: logger}
}

func (s *templateService) ListTemplates(ctx context.Context, filter repositories.TemplateFilter) ([]TemplateView, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, *filter.Category)
	}
	templates, err := s.templateRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	views := make([]TemplateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, toTemplateView(t))
	}
	return views, nil
}

func (s *templateService) GetTemplate(ctx context.Context, id int) (*TemplateView, error) {
	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toTemplateView(t)
	return &view, nil
}

func (s *templateService) getTemplate(ctx context.Context, id int) (*models.PhaseTemplate, error) {
	t, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template %d: %w", id, err)
	}
	return t, nil
}

func (s *templateService) CreateTemplate(ctx context.Context, actor Actor, input CreateTemplateInput) (*TemplateView, error) {
	t := &models.PhaseTemplate{
		Name:         strings.TrimSpace(input.Name),
		Category:     input.Category,
		MinUnits:     input.MinUnits,
		MaxUnits:     input.MaxUnits,
		DefaultUnits: input.DefaultUnits,
		DiagramText:  input.DiagramText,
		CreatedBy:    &actor.UserID,
	}
	if t.DefaultUnits == 0 {
		t.DefaultUnits = t.MinUnits
	}
	structure, err := compactStructure(input.Structure)
	if err != nil {
		return nil, err
	}
	t.StructureJSON = structure

	if err := validateTemplate(t); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Create(ctx, t); err != nil {
		return nil, mapTemplateRepoError(err)
	}
	s.logger.InfoContext(ctx, "template created",
		slog.Int("template_id", t.ID), slog.String("name", t.Name), slog.Int("user_id", actor.UserID))

	view := toTemplateView(t)
	return &view, nil
}

func (s *templateService) UpdateTemplate(ctx context.Context, actor Actor, id int, input UpdateTemplateInput) (*TemplateView, error) {
	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTemplateOwner(t, actor); err != nil {
		return nil, err
	}

	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		t.Category = *input.Category
	}
	if input.MinUnits != nil {
		t.MinUnits = *input.MinUnits
	}
	if input.MaxUnits != nil {
		t.MaxUnits = *input.MaxUnits
	}
	if input.DefaultUnits != nil {
		t.DefaultUnits = *input.DefaultUnits
	}
	if input.DiagramText != nil {
		t.DiagramText = input.DiagramText
	}
	if input.Structure != nil {
		structure, err := compactStructure(*input.Structure)
		if err != nil {
			return nil, err
		}
		t.StructureJSON = structure
	}

	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if err := s.templateRepo.Update(ctx, t); err != nil {
		return nil, mapTemplateRepoError(err)
	}

	view := toTemplateView(t)
	return &view, nil
}

func (s *templateService) DeleteTemplate(ctx context.Context, actor Actor, id int) error {
	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTemplateOwner(t, actor); err != nil {
		return err
	}
	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return mapTemplateRepoError(err)
	}
	s.logger.InfoContext(ctx, "template deleted", slog.Int("template_id", id), slog.Int("user_id", actor.UserID))
	return nil
}

// PreviewTemplate resolves the template without writing anything. units
// defaults to the template's default unit count.
func (s *templateService) PreviewTemplate(ctx context.Context, id int, units *int) (*ScheduleOutput, error) {
	t, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	n := derefInt(units, t.DefaultUnits)
	res, err := brackets.Resolve(t, n)
	if err != nil {
		return nil, err
	}
	out := newScheduleOutput(res)
	out.TemplateID = t.ID
	return out, nil
}

func checkTemplateOwner(t *models.PhaseTemplate, actor Actor) error {
	if t.IsSystem {
		return ErrSystemTemplateFixed
	}
	if actor.IsAdmin() {
		return nil
	}
	if t.CreatedBy == nil || *t.CreatedBy != actor.UserID {
		return ErrForbiddenOperation
	}
	return nil
}

func compactStructure(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: structure is required", ErrInvalidStructure)
	}
	if _, err := brackets.ParseStructure(string(raw)); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return buf.String(), nil
}

// validateTemplate checks metadata and resolves the structure for every unit
// count the template accepts.
func validateTemplate(t *models.PhaseTemplate) error {
	if t.Name == "" {
		return fmt.Errorf("%w: %w", ErrValidationFailed, ErrTemplateNameRequired)
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrValidationFailed, ErrInvalidCategory, t.Category)
	}
	if t.MinUnits < 2 || t.MaxUnits < t.MinUnits || t.MaxUnits > maxTemplateUnits {
		return fmt.Errorf("%w: %w: %d..%d (allowed 2..%d)", ErrValidationFailed, ErrInvalidUnitRange, t.MinUnits, t.MaxUnits, maxTemplateUnits)
	}
	if t.DefaultUnits < t.MinUnits || t.DefaultUnits > t.MaxUnits {
		return fmt.Errorf("%w: %w: default %d is outside %d..%d", ErrValidationFailed, ErrInvalidUnitRange, t.DefaultUnits, t.MinUnits, t.MaxUnits)
	}

	structure, err := brackets.ParseStructure(t.StructureJSON)
	if err != nil {
		return err
	}
	for n := t.MinUnits; n <= t.MaxUnits; n++ {
		if _, err := brackets.ResolveStructure(structure, n); err != nil {
			return fmt.Errorf("%w (with %d units)", err, n)
		}
	}
	return nil
}

func mapTemplateRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTemplateNotFound):
		return ErrTemplateNotFound
	case errors.Is(err, repositories.ErrTemplateNameConflict):
		return ErrTemplateNameConflict
	case errors.Is(err, repositories.ErrTemplateInUse):
		return ErrTemplateInUse
	case errors.Is(err, repositories.ErrTemplateInvalidUnits):
		return fmt.Errorf("%w: %w", ErrValidationFailed, ErrInvalidUnitRange)
	default:
		return fmt.Errorf("template repository: %w", err)
	}
}

func toTemplateView(t *models.PhaseTemplate) TemplateView {
	view := TemplateView{PhaseTemplate: t}
	if json.Valid([]byte(t.StructureJSON)) {
		view.Structure = json.RawMessage(t.StructureJSON)
	}
	return view
}
