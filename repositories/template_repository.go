package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/LegalDragon/pickleball-community/models"
)

var (
	ErrTemplateNotFound     = errors.New("phase template not found")
	ErrTemplateNameConflict = errors.New("phase template name conflict")
	ErrTemplateInUse        = errors.New("phase template is in use by a schedule")
	ErrTemplateInvalidUnits = errors.New("phase template unit range is invalid")
)

type TemplateFilter struct {
	Category *models.TemplateCategory
	Units    *int
}

type TemplateRepository interface {
	Create(ctx context.Context, t *models.PhaseTemplate) error
	GetByID(ctx context.Context, id int) (*models.PhaseTemplate, error)
	GetByName(ctx context.Context, name string) (*models.PhaseTemplate, error)
	List(ctx context.Context, filter TemplateFilter) ([]*models.PhaseTemplate, error)
	Update(ctx context.Context, t *models.PhaseTemplate) error
	Delete(ctx context.Context, id int) error
}

type postgresTemplateRepository struct {
	db *sql.DB
}

func NewPostgresTemplateRepository(db *sql.DB) TemplateRepository {
	return &postgresTemplateRepository{db: db}
}

const templateColumns = `id, name, category, min_units, max_units, default_units,
	structure_json, diagram_text, is_system, created_by, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.PhaseTemplate, error) {
	t := &models.PhaseTemplate{}
	var (
		diagram   sql.NullString
		createdBy sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Category, &t.MinUnits, &t.MaxUnits, &t.DefaultUnits,
		&t.StructureJSON, &diagram, &t.IsSystem, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if diagram.Valid {
		t.DiagramText = &diagram.String
	}
	t.CreatedBy = intPtrFromNull(createdBy)
	return t, nil
}

func (r *postgresTemplateRepository) Create(ctx context.Context, t *models.PhaseTemplate) error {
	query := `
		INSERT INTO phase_templates
			(name, category, min_units, max_units, default_units, structure_json, diagram_text, is_system, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Category, t.MinUnits, t.MaxUnits, t.DefaultUnits,
		t.StructureJSON, t.DiagramText, t.IsSystem, nullableInt(t.CreatedBy),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return r.handleTemplateError(err)
}

func (r *postgresTemplateRepository) GetByID(ctx context.Context, id int) (*models.PhaseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM phase_templates WHERE id = $1`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTemplateRepository) GetByName(ctx context.Context, name string) (*models.PhaseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM phase_templates WHERE name = $1`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTemplateRepository) List(ctx context.Context, filter TemplateFilter) ([]*models.PhaseTemplate, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Units != nil {
		args = append(args, *filter.Units)
		conditions = append(conditions, fmt.Sprintf("min_units <= $%d AND max_units >= $%d", len(args), len(args)))
	}

	query := `SELECT ` + templateColumns + ` FROM phase_templates`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY is_system DESC, category, min_units, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]*models.PhaseTemplate, 0)
	for rows.Next() {
		t, scanErr := scanTemplate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *postgresTemplateRepository) Update(ctx context.Context, t *models.PhaseTemplate) error {
	query := `
		UPDATE phase_templates
		SET name = $1, category = $2, min_units = $3, max_units = $4, default_units = $5,
		    structure_json = $6, diagram_text = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Category, t.MinUnits, t.MaxUnits, t.DefaultUnits,
		t.StructureJSON, t.DiagramText, t.ID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTemplateNotFound
	}
	return r.handleTemplateError(err)
}

func (r *postgresTemplateRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM phase_templates WHERE id = $1`, id)
	if err != nil {
		return r.handleTemplateError(err)
	}
	return checkAffectedRows(result, ErrTemplateNotFound)
}

func (r *postgresTemplateRepository) handleTemplateError(err error) error {
	if err == nil {
		return nil
	}
	switch code, _ := pqCode(err); code {
	case pqUniqueViolation:
		return ErrTemplateNameConflict
	case pqForeignKeyViolation:
		return ErrTemplateInUse
	case pqCheckViolation:
		return ErrTemplateInvalidUnits
	}
	return err
}
