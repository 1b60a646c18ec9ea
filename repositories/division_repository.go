package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LegalDragon/pickleball-community/models"
)

var ErrDivisionNotFound = errors.New("division not found")

// DivisionRepository reads divisions and their registered units. Both are
// owned by the registration subsystem; nothing here writes to them.
type DivisionRepository interface {
	GetByID(ctx context.Context, id int) (*models.Division, error)
	ListUnits(ctx context.Context, divisionID int, eligibleOnly bool) ([]*models.Unit, error)
	CountEligibleUnits(ctx context.Context, divisionID int) (int, error)
}

type postgresDivisionRepository struct {
	db *sql.DB
}

func NewPostgresDivisionRepository(db *sql.DB) DivisionRepository {
	return &postgresDivisionRepository{db: db}
}

func (r *postgresDivisionRepository) GetByID(ctx context.Context, id int) (*models.Division, error) {
	query := `
		SELECT id, event_id, name, template_id, default_best_of, default_score_format_id
		FROM divisions
		WHERE id = $1`

	d := &models.Division{}
	var templateID, bestOf, scoreFormatID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.EventID, &d.Name, &templateID, &bestOf, &scoreFormatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, err
	}
	d.TemplateID = intPtrFromNull(templateID)
	d.DefaultBestOf = intPtrFromNull(bestOf)
	d.DefaultScoreFormatID = intPtrFromNull(scoreFormatID)
	return d, nil
}

func (r *postgresDivisionRepository) ListUnits(ctx context.Context, divisionID int, eligibleOnly bool) ([]*models.Unit, error) {
	query := `
		SELECT u.id, u.division_id, u.name, u.status, m.user_id, m.display_name, m.gender
		FROM division_units u
		LEFT JOIN division_unit_members m ON m.unit_id = u.id
		WHERE u.division_id = $1`
	if eligibleOnly {
		query += ` AND u.status NOT IN ('Cancelled', 'Waitlisted')`
	}
	query += ` ORDER BY u.id, m.user_id`

	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make([]*models.Unit, 0)
	byID := make(map[int]*models.Unit)
	for rows.Next() {
		var (
			u           models.Unit
			userID      sql.NullInt64
			displayName sql.NullString
			gender      sql.NullString
		)
		if scanErr := rows.Scan(&u.ID, &u.DivisionID, &u.Name, &u.Status, &userID, &displayName, &gender); scanErr != nil {
			return nil, scanErr
		}

		unit, ok := byID[u.ID]
		if !ok {
			unit = &u
			byID[u.ID] = unit
			units = append(units, unit)
		}
		if userID.Valid {
			unit.Members = append(unit.Members, models.UnitMember{
				UserID:      int(userID.Int64),
				DisplayName: displayName.String,
				Gender:      gender.String,
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return units, nil
}

func (r *postgresDivisionRepository) CountEligibleUnits(ctx context.Context, divisionID int) (int, error) {
	query := `
		SELECT COUNT(*) FROM division_units
		WHERE division_id = $1 AND status NOT IN ('Cancelled', 'Waitlisted')`
	var n int
	if err := r.db.QueryRowContext(ctx, query, divisionID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
