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
	ErrPhaseNotFound      = errors.New("phase not found")
	ErrSlotNotFound       = errors.New("phase slot not found")
	ErrUnitAlreadyPlaced  = errors.New("unit already holds a slot in this phase")
	ErrPhaseRuleConflict  = errors.New("advancement rule conflicts with an existing rule")
	ErrPhaseOrderConflict = errors.New("phase order already exists for division")
)

// PhaseRepository persists a division schedule: phases, their slots,
// advancement rules and encounters. Writes take an SQLExecutor so the
// schedule generator can create everything in one transaction.
type PhaseRepository interface {
	CountByDivision(ctx context.Context, exec SQLExecutor, divisionID int) (int, error)
	DeleteByDivision(ctx context.Context, exec SQLExecutor, divisionID int) error

	CreatePhase(ctx context.Context, exec SQLExecutor, phase *models.Phase) error
	CreateSlots(ctx context.Context, exec SQLExecutor, phaseID int, slotCount int, poolOf func(slot int) int) error
	CreateRule(ctx context.Context, exec SQLExecutor, rule *models.AdvancementRule) error
	CreateEncounter(ctx context.Context, exec SQLExecutor, encounter *models.Encounter) error

	// LockDivision holds the rows of every phase of the division until the
	// transaction ends. ErrPhaseNotFound means the division has no schedule.
	LockDivision(ctx context.Context, exec SQLExecutor, divisionID int) error

	GetByID(ctx context.Context, id int) (*models.Phase, error)
	ListByDivision(ctx context.Context, divisionID int) ([]*models.Phase, error)
	ListSlots(ctx context.Context, divisionID int) ([]models.Slot, error)
	ListRules(ctx context.Context, divisionID int) ([]models.AdvancementRule, error)
	ListEncounters(ctx context.Context, divisionID int) ([]models.Encounter, error)

	AssignSlot(ctx context.Context, exec SQLExecutor, phaseID, slotNumber int, unitID *int, autoAdvanced bool) error
	ClearAutoAdvanced(ctx context.Context, exec SQLExecutor, divisionID int) error
	ResetByes(ctx context.Context, exec SQLExecutor, divisionID int) error
	MarkBye(ctx context.Context, exec SQLExecutor, phaseID, encounterNumber, unitID int) error
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

func (r *postgresPhaseRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPhaseRepository) CountByDivision(ctx context.Context, exec SQLExecutor, divisionID int) (int, error) {
	var n int
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT COUNT(*) FROM phases WHERE division_id = $1`, divisionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count phases for division %d: %w", divisionID, err)
	}
	return n, nil
}

// DeleteByDivision removes the whole schedule; slots, rules and encounters cascade.
func (r *postgresPhaseRepository) DeleteByDivision(ctx context.Context, exec SQLExecutor, divisionID int) error {
	if _, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM phases WHERE division_id = $1`, divisionID); err != nil {
		return fmt.Errorf("failed to delete phases for division %d: %w", divisionID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) CreatePhase(ctx context.Context, exec SQLExecutor, p *models.Phase) error {
	query := `
		INSERT INTO phases
			(division_id, template_id, phase_order, name, phase_type, entry_slots, exit_slots,
			 pool_count, bye_count, include_consolation, bracket_round, bracket_side, best_of, score_format_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.DivisionID, nullableInt(p.TemplateID), p.PhaseOrder, p.Name, p.PhaseType, p.EntrySlots, p.ExitSlots,
		p.PoolCount, p.ByeCount, p.IncludeConsolation, nullableInt(p.BracketRound), p.BracketSide, nullableInt(p.BestOf), nullableInt(p.ScoreFormatID),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, _ := pqCode(err); code == pqUniqueViolation {
			return ErrPhaseOrderConflict
		}
		return fmt.Errorf("failed to create phase %q: %w", p.Name, err)
	}
	return nil
}

func (r *postgresPhaseRepository) CreateSlots(ctx context.Context, exec SQLExecutor, phaseID int, slotCount int, poolOf func(slot int) int) error {
	if slotCount == 0 {
		return nil
	}
	numbers := make([]int64, slotCount)
	pools := make([]int64, slotCount)
	for i := range numbers {
		numbers[i] = int64(i + 1)
		if poolOf != nil {
			pools[i] = int64(poolOf(i + 1))
		}
	}

	query := `
		INSERT INTO phase_slots (phase_id, slot_number, pool_number)
		SELECT $1, s.slot_number, NULLIF(s.pool_number, 0)
		FROM unnest($2::int[], $3::int[]) AS s(slot_number, pool_number)`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, phaseID, pq.Array(numbers), pq.Array(pools)); err != nil {
		return fmt.Errorf("failed to create %d slots for phase %d: %w", slotCount, phaseID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) CreateRule(ctx context.Context, exec SQLExecutor, rule *models.AdvancementRule) error {
	query := `
		INSERT INTO advancement_rules
			(division_id, source_phase_id, source_position, source_label, target_phase_id, target_slot_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		rule.DivisionID, rule.SourcePhaseID, rule.SourcePosition, rule.SourceLabel, rule.TargetPhaseID, rule.TargetSlotNumber,
	).Scan(&rule.ID)
	if err != nil {
		if code, _ := pqCode(err); code == pqUniqueViolation {
			return ErrPhaseRuleConflict
		}
		return fmt.Errorf("failed to create advancement rule: %w", err)
	}
	return nil
}

func (r *postgresPhaseRepository) CreateEncounter(ctx context.Context, exec SQLExecutor, e *models.Encounter) error {
	query := `
		INSERT INTO encounters
			(phase_id, encounter_number, round_number, pool_number, slot_a_number, slot_b_number,
			 winner_position, loser_position, label, best_of, score_format_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.PhaseID, e.EncounterNumber, e.RoundNumber, nullableInt(e.PoolNumber), e.SlotA, e.SlotB,
		nullableInt(e.WinnerPosition), nullableInt(e.LoserPosition), e.Label, e.BestOf, nullableInt(e.ScoreFormatID),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create encounter %d for phase %d: %w", e.EncounterNumber, e.PhaseID, err)
	}
	return nil
}

const phaseColumns = `id, division_id, template_id, phase_order, name, phase_type, entry_slots, exit_slots,
	pool_count, bye_count, include_consolation, bracket_round, bracket_side, best_of, score_format_id, created_at`

func scanPhase(row interface{ Scan(...interface{}) error }) (*models.Phase, error) {
	p := &models.Phase{}
	var (
		templateID, bracketRound, bestOf, scoreFormatID sql.NullInt64
		bracketSide                                     sql.NullString
	)
	err := row.Scan(&p.ID, &p.DivisionID, &templateID, &p.PhaseOrder, &p.Name, &p.PhaseType, &p.EntrySlots, &p.ExitSlots,
		&p.PoolCount, &p.ByeCount, &p.IncludeConsolation, &bracketRound, &bracketSide, &bestOf, &scoreFormatID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.TemplateID = intPtrFromNull(templateID)
	p.BracketRound = intPtrFromNull(bracketRound)
	p.BestOf = intPtrFromNull(bestOf)
	p.ScoreFormatID = intPtrFromNull(scoreFormatID)
	if bracketSide.Valid {
		p.BracketSide = &bracketSide.String
	}
	return p, nil
}

func (r *postgresPhaseRepository) LockDivision(ctx context.Context, exec SQLExecutor, divisionID int) error {
	rows, err := r.getExecutor(exec).QueryContext(ctx, `SELECT id FROM phases WHERE division_id = $1 ORDER BY id FOR UPDATE`, divisionID)
	if err != nil {
		return fmt.Errorf("failed to lock phases of division %d: %w", divisionID, err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock phases of division %d: %w", divisionID, err)
	}
	if locked == 0 {
		return ErrPhaseNotFound
	}
	return nil
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	p, err := scanPhase(r.db.QueryRowContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPhaseRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Phase, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE division_id = $1 ORDER BY phase_order`, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	phases := make([]*models.Phase, 0)
	for rows.Next() {
		p, scanErr := scanPhase(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) ListSlots(ctx context.Context, divisionID int) ([]models.Slot, error) {
	query := `
		SELECT s.id, s.phase_id, s.slot_number, s.pool_number, s.unit_id, s.auto_advanced
		FROM phase_slots s
		JOIN phases p ON p.id = s.phase_id
		WHERE p.division_id = $1
		ORDER BY p.phase_order, s.slot_number`
	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	slots := make([]models.Slot, 0)
	for rows.Next() {
		var (
			s            models.Slot
			pool, unitID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.PhaseID, &s.SlotNumber, &pool, &unitID, &s.AutoAdvanced); err != nil {
			return nil, err
		}
		s.PoolNumber = intPtrFromNull(pool)
		s.UnitID = intPtrFromNull(unitID)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *postgresPhaseRepository) ListRules(ctx context.Context, divisionID int) ([]models.AdvancementRule, error) {
	query := `
		SELECT id, division_id, source_phase_id, source_position, source_label, target_phase_id, target_slot_number
		FROM advancement_rules
		WHERE division_id = $1
		ORDER BY target_phase_id, target_slot_number`
	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list advancement rules for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	rules := make([]models.AdvancementRule, 0)
	for rows.Next() {
		var rule models.AdvancementRule
		if err := rows.Scan(&rule.ID, &rule.DivisionID, &rule.SourcePhaseID, &rule.SourcePosition,
			&rule.SourceLabel, &rule.TargetPhaseID, &rule.TargetSlotNumber); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *postgresPhaseRepository) ListEncounters(ctx context.Context, divisionID int) ([]models.Encounter, error) {
	query := `
		SELECT e.id, e.phase_id, e.encounter_number, e.round_number, e.pool_number, e.slot_a_number, e.slot_b_number,
		       e.winner_position, e.loser_position, e.label, e.is_bye, e.bye_unit_id, e.best_of, e.score_format_id, e.notes
		FROM encounters e
		JOIN phases p ON p.id = e.phase_id
		WHERE p.division_id = $1
		ORDER BY p.phase_order, e.encounter_number`
	rows, err := r.db.QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounters for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	encounters := make([]models.Encounter, 0)
	for rows.Next() {
		var (
			e                                   models.Encounter
			pool, winner, loser, byeUnit, score sql.NullInt64
			notes                               sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PhaseID, &e.EncounterNumber, &e.RoundNumber, &pool, &e.SlotA, &e.SlotB,
			&winner, &loser, &e.Label, &e.IsBye, &byeUnit, &e.BestOf, &score, &notes); err != nil {
			return nil, err
		}
		e.PoolNumber = intPtrFromNull(pool)
		e.WinnerPosition = intPtrFromNull(winner)
		e.LoserPosition = intPtrFromNull(loser)
		e.ByeUnitID = intPtrFromNull(byeUnit)
		e.ScoreFormatID = intPtrFromNull(score)
		if notes.Valid {
			e.Notes = &notes.String
		}
		encounters = append(encounters, e)
	}
	return encounters, rows.Err()
}

// AssignSlot sets (or clears, when unitID is nil) the unit of one slot.
func (r *postgresPhaseRepository) AssignSlot(ctx context.Context, exec SQLExecutor, phaseID, slotNumber int, unitID *int, autoAdvanced bool) error {
	query := `
		UPDATE phase_slots SET unit_id = $1, auto_advanced = $2
		WHERE phase_id = $3 AND slot_number = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, nullableInt(unitID), autoAdvanced, phaseID, slotNumber)
	if err != nil {
		if code, _ := pqCode(err); code == pqUniqueViolation {
			return ErrUnitAlreadyPlaced
		}
		return fmt.Errorf("failed to assign slot %d of phase %d: %w", slotNumber, phaseID, err)
	}
	return checkAffectedRows(result, ErrSlotNotFound)
}

func (r *postgresPhaseRepository) ClearAutoAdvanced(ctx context.Context, exec SQLExecutor, divisionID int) error {
	query := `
		UPDATE phase_slots SET unit_id = NULL, auto_advanced = FALSE
		WHERE auto_advanced AND phase_id IN (SELECT id FROM phases WHERE division_id = $1)`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, divisionID); err != nil {
		return fmt.Errorf("failed to clear advanced slots for division %d: %w", divisionID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) ResetByes(ctx context.Context, exec SQLExecutor, divisionID int) error {
	query := `
		UPDATE encounters SET is_bye = FALSE, bye_unit_id = NULL
		WHERE is_bye AND phase_id IN (SELECT id FROM phases WHERE division_id = $1)`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, divisionID); err != nil {
		return fmt.Errorf("failed to reset byes for division %d: %w", divisionID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) MarkBye(ctx context.Context, exec SQLExecutor, phaseID, encounterNumber, unitID int) error {
	query := `
		UPDATE encounters SET is_bye = TRUE, bye_unit_id = $1
		WHERE phase_id = $2 AND encounter_number = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, unitID, phaseID, encounterNumber)
	if err != nil {
		return fmt.Errorf("failed to mark bye for encounter %d of phase %d: %w", encounterNumber, phaseID, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}
