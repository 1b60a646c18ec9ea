package brackets

import "github.com/LegalDragon/pickleball-community/models"

const (
	EventDrawingSnapshot = "DrawingSnapshot"
	EventDrawStarted     = "DrawStarted"
	EventUnitDrawn       = "UnitDrawn"
	EventDrawCompleted   = "DrawCompleted"
	EventDrawReset       = "DrawReset"
	EventDrawConfirmed   = "DrawConfirmed"
)

type DrawStartedPayload struct {
	DivisionID int    `json:"divisionId"`
	SessionID  string `json:"sessionId"`
	TotalUnits int    `json:"totalUnits"`
}

type UnitDrawnPayload struct {
	DivisionID     int    `json:"divisionId"`
	UnitID         int    `json:"unitId"`
	UnitName       string `json:"unitName"`
	SlotNumber     int    `json:"slotNumber"`
	RemainingCount int    `json:"remainingCount"`
}

type DrawCompletedPayload struct {
	DivisionID int                `json:"divisionId"`
	FinalOrder []models.DrawnUnit `json:"finalOrder"`
}

type DrawResetPayload struct {
	DivisionID int    `json:"divisionId"`
	SessionID  string `json:"sessionId"`
}

type DrawConfirmedPayload struct {
	DivisionID  int    `json:"divisionId"`
	SessionID   string `json:"sessionId"`
	ConfirmedBy int    `json:"confirmedBy"`
}

// SnapshotPayload is what a joining spectator receives before any event.
type SnapshotPayload struct {
	DivisionID     int                `json:"divisionId"`
	Active         bool               `json:"active"`
	SessionID      string             `json:"sessionId,omitempty"`
	State          models.DrawState   `json:"state,omitempty"`
	TotalUnits     int                `json:"totalUnits"`
	Drawn          []models.DrawnUnit `json:"drawn"`
	RemainingCount int                `json:"remainingCount"`
}

// NewSnapshot describes session for spectators without revealing undrawn units.
func NewSnapshot(divisionID int, session *models.DrawingSession) RoomMessage {
	payload := SnapshotPayload{DivisionID: divisionID, Drawn: []models.DrawnUnit{}}
	version := 0
	if session != nil {
		payload.Active = true
		payload.SessionID = session.ID
		payload.State = session.State
		payload.TotalUnits = session.TotalUnits()
		payload.Drawn = session.Drawn
		payload.RemainingCount = session.RemainingCount()
		version = session.Version
	}
	return RoomMessage{
		Type:    EventDrawingSnapshot,
		Payload: payload,
		RoomID:  DivisionRoom(divisionID),
		Version: version,
	}
}
