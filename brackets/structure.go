package brackets

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type PhaseKind string

const (
	KindRoundRobin PhaseKind = "round_robin"
	KindPools      PhaseKind = "pools"
	KindBracket    PhaseKind = "bracket"
	KindAward      PhaseKind = "award"
	KindDraw       PhaseKind = "draw"
)

// PhaseDef is one entry of a template structure. Concrete variants are
// RoundRobinPhase, PoolsPhase, BracketPhase, AwardPhase and DrawPhase.
type PhaseDef interface {
	Kind() PhaseKind
	Options() PhaseOptions
}

// PhaseOptions are shared by every variant.
type PhaseOptions struct {
	Name          string `json:"name,omitempty"`
	BestOf        *int   `json:"best_of,omitempty"`
	ScoreFormatID *int   `json:"score_format_id,omitempty"`
}

type RoundRobinPhase struct {
	PhaseOptions
	Advance int `json:"advance,omitempty"`
	Legs    int `json:"legs,omitempty"`
}

type PoolsPhase struct {
	PhaseOptions
	Pools          int `json:"pools"`
	AdvancePerPool int `json:"advance_per_pool,omitempty"`
	Legs           int `json:"legs,omitempty"`
}

type BracketPhase struct {
	PhaseOptions
	Double      bool `json:"double,omitempty"`
	Consolation bool `json:"consolation,omitempty"`
	// Advance stops the bracket once this many units remain (power of two). Zero plays to a champion.
	Advance int `json:"advance,omitempty"`
}

type AwardPhase struct {
	PhaseOptions
	Places int `json:"places,omitempty"`
}

type DrawPhase struct {
	PhaseOptions
}

func (p RoundRobinPhase) Kind() PhaseKind { return KindRoundRobin }
func (p PoolsPhase) Kind() PhaseKind      { return KindPools }
func (p BracketPhase) Kind() PhaseKind    { return KindBracket }
func (p AwardPhase) Kind() PhaseKind      { return KindAward }
func (p DrawPhase) Kind() PhaseKind       { return KindDraw }

func (p RoundRobinPhase) Options() PhaseOptions { return p.PhaseOptions }
func (p PoolsPhase) Options() PhaseOptions      { return p.PhaseOptions }
func (p BracketPhase) Options() PhaseOptions    { return p.PhaseOptions }
func (p AwardPhase) Options() PhaseOptions      { return p.PhaseOptions }
func (p DrawPhase) Options() PhaseOptions       { return p.PhaseOptions }

func (p RoundRobinPhase) MarshalJSON() ([]byte, error) {
	type alias RoundRobinPhase
	return json.Marshal(struct {
		Type PhaseKind `json:"type"`
		alias
	}{KindRoundRobin, alias(p)})
}

func (p PoolsPhase) MarshalJSON() ([]byte, error) {
	type alias PoolsPhase
	return json.Marshal(struct {
		Type PhaseKind `json:"type"`
		alias
	}{KindPools, alias(p)})
}

func (p BracketPhase) MarshalJSON() ([]byte, error) {
	type alias BracketPhase
	return json.Marshal(struct {
		Type PhaseKind `json:"type"`
		alias
	}{KindBracket, alias(p)})
}

func (p AwardPhase) MarshalJSON() ([]byte, error) {
	type alias AwardPhase
	return json.Marshal(struct {
		Type PhaseKind `json:"type"`
		alias
	}{KindAward, alias(p)})
}

func (p DrawPhase) MarshalJSON() ([]byte, error) {
	type alias DrawPhase
	return json.Marshal(struct {
		Type PhaseKind `json:"type"`
		alias
	}{KindDraw, alias(p)})
}

// RuleDef is an explicit advancement between template phases (1-based indexes
// into Structure.Phases).
type RuleDef struct {
	FromPhase    int `json:"from_phase"`
	FromPosition int `json:"from_position"`
	ToPhase      int `json:"to_phase"`
	ToSlot       int `json:"to_slot"`
}

type Structure struct {
	Phases      []PhaseDef `json:"phases"`
	Advancement []RuleDef  `json:"advancement,omitempty"`
}

func (s *Structure) UnmarshalJSON(data []byte) error {
	var raw struct {
		Phases      []json.RawMessage `json:"phases"`
		Advancement []RuleDef         `json:"advancement"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	phases := make([]PhaseDef, 0, len(raw.Phases))
	for i, msg := range raw.Phases {
		def, err := decodePhase(msg)
		if err != nil {
			return fmt.Errorf("phase %d: %w", i+1, err)
		}
		phases = append(phases, def)
	}

	s.Phases = phases
	s.Advancement = raw.Advancement
	return nil
}

func decodePhase(msg json.RawMessage) (PhaseDef, error) {
	var head struct {
		Type PhaseKind `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case KindRoundRobin:
		var p RoundRobinPhase
		err := strictUnmarshal(msg, &p)
		return p, err
	case KindPools:
		var p PoolsPhase
		err := strictUnmarshal(msg, &p)
		return p, err
	case KindBracket:
		var p BracketPhase
		err := strictUnmarshal(msg, &p)
		return p, err
	case KindAward:
		var p AwardPhase
		err := strictUnmarshal(msg, &p)
		return p, err
	case KindDraw:
		var p DrawPhase
		err := strictUnmarshal(msg, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown phase type %q", head.Type)
	}
}

// strictUnmarshal rejects unknown keys; "type" is consumed by the variant switch.
func strictUnmarshal(msg json.RawMessage, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return err
	}
	delete(fields, "type")
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(cleaned))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseStructure decodes a template structure description. Any decoding
// problem is reported as ErrInvalidStructure.
func ParseStructure(structureJSON string) (*Structure, error) {
	var s Structure
	if err := json.Unmarshal([]byte(structureJSON), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if len(s.Phases) == 0 {
		return nil, fmt.Errorf("%w: structure has no phases", ErrInvalidStructure)
	}
	return &s, nil
}
