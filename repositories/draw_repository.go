package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/lib/pq"
)

var (
	ErrDrawRecordNotFound  = errors.New("draw record not found")
	ErrDrawAlreadyRecorded = errors.New("draw session already recorded")
	ErrDrawSlotsMissing    = errors.New("draw phase does not have the drawn slots")
)

// DrawRepository holds the writes of a draw confirmation. Callers run all of
// them inside one transaction after PhaseRepository.LockDivision.
type DrawRepository interface {
	CountOccupiedSlots(ctx context.Context, exec SQLExecutor, phaseID int) (int, error)
	AssignDrawnUnits(ctx context.Context, exec SQLExecutor, phaseID int, drawn []models.DrawnUnit) error
	CreateRecord(ctx context.Context, exec SQLExecutor, record *models.DrawRecord) error
	GetLatestByDivision(ctx context.Context, divisionID int) (*models.DrawRecord, error)
}

type postgresDrawRepository struct {
	db *sql.DB
}

func NewPostgresDrawRepository(db *sql.DB) DrawRepository {
	return &postgresDrawRepository{db: db}
}

func (r *postgresDrawRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// CountOccupiedSlots counts slots holding a unit placed by a draw or by hand.
func (r *postgresDrawRepository) CountOccupiedSlots(ctx context.Context, exec SQLExecutor, phaseID int) (int, error) {
	query := `SELECT COUNT(*) FROM phase_slots WHERE phase_id = $1 AND unit_id IS NOT NULL AND NOT auto_advanced`
	var n int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, phaseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count occupied slots of phase %d: %w", phaseID, err)
	}
	return n, nil
}

func (r *postgresDrawRepository) AssignDrawnUnits(ctx context.Context, exec SQLExecutor, phaseID int, drawn []models.DrawnUnit) error {
	if len(drawn) == 0 {
		return nil
	}
	slots := make([]int64, len(drawn))
	units := make([]int64, len(drawn))
	for i, d := range drawn {
		slots[i] = int64(d.SlotNumber)
		units[i] = int64(d.UnitID)
	}

	query := `
		UPDATE phase_slots s
		SET unit_id = d.unit_id, auto_advanced = FALSE
		FROM unnest($2::int[], $3::int[]) AS d(slot_number, unit_id)
		WHERE s.phase_id = $1 AND s.slot_number = d.slot_number`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, phaseID, pq.Array(slots), pq.Array(units))
	if err != nil {
		if code, _ := pqCode(err); code == pqUniqueViolation {
			return ErrUnitAlreadyPlaced
		}
		return fmt.Errorf("failed to assign drawn units to phase %d: %w", phaseID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if int(affected) != len(drawn) {
		return fmt.Errorf("%w: updated %d of %d", ErrDrawSlotsMissing, affected, len(drawn))
	}
	return nil
}

func (r *postgresDrawRepository) CreateRecord(ctx context.Context, exec SQLExecutor, rec *models.DrawRecord) error {
	query := `
		INSERT INTO division_draws (division_id, phase_id, session_id, confirmed_by, seed, final_order, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		rec.DivisionID, rec.PhaseID, rec.SessionID, rec.ConfirmedBy, rec.Seed, rec.FinalOrder, rec.ConfirmedAt,
	).Scan(&rec.ID)
	if err != nil {
		if code, _ := pqCode(err); code == pqUniqueViolation {
			return ErrDrawAlreadyRecorded
		}
		return fmt.Errorf("failed to create draw record: %w", err)
	}
	return nil
}

func (r *postgresDrawRepository) GetLatestByDivision(ctx context.Context, divisionID int) (*models.DrawRecord, error) {
	query := `
		SELECT id, division_id, phase_id, session_id, confirmed_by, seed, final_order, confirmed_at
		FROM division_draws
		WHERE division_id = $1
		ORDER BY confirmed_at DESC
		LIMIT 1`
	rec := &models.DrawRecord{}
	err := r.db.QueryRowContext(ctx, query, divisionID).Scan(
		&rec.ID, &rec.DivisionID, &rec.PhaseID, &rec.SessionID, &rec.ConfirmedBy, &rec.Seed, &rec.FinalOrder, &rec.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDrawRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}
