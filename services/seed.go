package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

//go:embed seed/templates.yaml
var systemTemplatesYAML []byte

type seedCatalog struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Name         string                  `yaml:"name"`
	Category     models.TemplateCategory `yaml:"category"`
	MinUnits     int                     `yaml:"min_units"`
	MaxUnits     int                     `yaml:"max_units"`
	DefaultUnits int                     `yaml:"default_units"`
	Diagram      string                  `yaml:"diagram"`
	Structure    map[string]interface{}  `yaml:"structure"`
}

// loadSystemTemplates decodes the embedded catalog into validated templates.
func loadSystemTemplates(data []byte) ([]*models.PhaseTemplate, error) {
	var catalog seedCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode template catalog: %w", err)
	}

	templates := make([]*models.PhaseTemplate, 0, len(catalog.Templates))
	for _, st := range catalog.Templates {
		structure, err := json.Marshal(st.Structure)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", st.Name, err)
		}
		t := &models.PhaseTemplate{
			Name:          st.Name,
			Category:      st.Category,
			MinUnits:      st.MinUnits,
			MaxUnits:      st.MaxUnits,
			DefaultUnits:  st.DefaultUnits,
			StructureJSON: string(structure),
			IsSystem:      true,
		}
		if st.Diagram != "" {
			diagram := st.Diagram
			t.DiagramText = &diagram
		}
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %q: %w", st.Name, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// SeedSystemTemplates inserts catalog templates that do not exist yet and
// returns how many were created.
func (s *templateService) SeedSystemTemplates(ctx context.Context) (int, error) {
	templates, err := loadSystemTemplates(systemTemplatesYAML)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, t := range templates {
		_, err := s.templateRepo.GetByName(ctx, t.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrTemplateNotFound) {
			return created, fmt.Errorf("failed to look up template %q: %w", t.Name, err)
		}
		if err := s.templateRepo.Create(ctx, t); err != nil {
			if errors.Is(err, repositories.ErrTemplateNameConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed template %q: %w", t.Name, err)
		}
		created++
	}
	s.logger.InfoContext(ctx, "system templates seeded", slog.Int("created", created), slog.Int("catalog", len(templates)))
	return created, nil
}
