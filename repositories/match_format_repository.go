package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LegalDragon/pickleball-community/models"
)

var (
	ErrMatchFormatNotFound = errors.New("match format not found")
	ErrOverrideNotFound    = errors.New("phase match format override not found")
)

type MatchFormatRepository interface {
	GetByID(ctx context.Context, id int) (*models.MatchFormat, error)
	ListByDivision(ctx context.Context, divisionID int) ([]*models.MatchFormat, error)
	GetPhaseOverride(ctx context.Context, phaseID, matchFormatID int) (*models.PhaseMatchFormatOverride, error)
}

type postgresMatchFormatRepository struct {
	db *sql.DB
}

func NewPostgresMatchFormatRepository(db *sql.DB) MatchFormatRepository {
	return &postgresMatchFormatRepository{db: db}
}

const matchFormatColumns = `id, division_id, name, male_count, female_count, any_count, best_of, score_format_id, sort_order`

func scanMatchFormat(row interface{ Scan(...interface{}) error }) (*models.MatchFormat, error) {
	f := &models.MatchFormat{}
	var bestOf, scoreFormatID sql.NullInt64
	if err := row.Scan(&f.ID, &f.DivisionID, &f.Name, &f.MaleCount, &f.FemaleCount, &f.AnyCount,
		&bestOf, &scoreFormatID, &f.SortOrder); err != nil {
		return nil, err
	}
	f.BestOf = intPtrFromNull(bestOf)
	f.ScoreFormatID = intPtrFromNull(scoreFormatID)
	return f, nil
}

func (r *postgresMatchFormatRepository) GetByID(ctx context.Context, id int) (*models.MatchFormat, error) {
	f, err := scanMatchFormat(r.db.QueryRowContext(ctx, `SELECT `+matchFormatColumns+` FROM match_formats WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchFormatNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *postgresMatchFormatRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.MatchFormat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchFormatColumns+` FROM match_formats WHERE division_id = $1 ORDER BY sort_order, id`, divisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formats := make([]*models.MatchFormat, 0)
	for rows.Next() {
		f, scanErr := scanMatchFormat(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (r *postgresMatchFormatRepository) GetPhaseOverride(ctx context.Context, phaseID, matchFormatID int) (*models.PhaseMatchFormatOverride, error) {
	query := `
		SELECT phase_id, match_format_id, best_of, score_format_id
		FROM phase_match_formats
		WHERE phase_id = $1 AND match_format_id = $2`
	o := &models.PhaseMatchFormatOverride{}
	var bestOf, scoreFormatID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, phaseID, matchFormatID).Scan(&o.PhaseID, &o.MatchFormatID, &bestOf, &scoreFormatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	o.BestOf = intPtrFromNull(bestOf)
	o.ScoreFormatID = intPtrFromNull(scoreFormatID)
	return o, nil
}
