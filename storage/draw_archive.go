package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LegalDragon/pickleball-community/models"
)

// DrawArchive writes confirmed draws to the object store as JSON documents
// keyed by division and session.
type DrawArchive struct {
	store ObjectStore
}

func NewDrawArchive(store ObjectStore) *DrawArchive {
	return &DrawArchive{store: store}
}

type archivedDraw struct {
	DivisionID  int                `json:"division_id"`
	PhaseID     int                `json:"phase_id"`
	SessionID   string             `json:"session_id"`
	ConfirmedBy int                `json:"confirmed_by"`
	Seed        string             `json:"seed"`
	ConfirmedAt time.Time          `json:"confirmed_at"`
	Assignments []models.DrawnUnit `json:"assignments"`
}

func DrawArchiveKey(divisionID int, sessionID string) string {
	return fmt.Sprintf("draws/division-%d/%s.json", divisionID, sessionID)
}

// Archive stores record and returns the public location (empty when the
// bucket has no public URL).
func (a *DrawArchive) Archive(ctx context.Context, record *models.DrawRecord, assignments []models.DrawnUnit) (string, error) {
	body, err := json.MarshalIndent(archivedDraw{
		DivisionID:  record.DivisionID,
		PhaseID:     record.PhaseID,
		SessionID:   record.SessionID,
		ConfirmedBy: record.ConfirmedBy,
		Seed:        record.Seed,
		ConfirmedAt: record.ConfirmedAt,
		Assignments: assignments,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode draw archive: %w", err)
	}

	result, err := a.store.Put(ctx, DrawArchiveKey(record.DivisionID, record.SessionID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
