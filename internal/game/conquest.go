package game

import (
	"encoding/json"
)

// ConquestEngine implements the timed two-party grid contest: both sides flip
// cell ownership until the window closes, majority owner takes the prize.
type ConquestEngine struct {
	GridSize int // cells per side, board is GridSize x GridSize
}

func (e *ConquestEngine) Kind() Kind { return KindConquest }

type conquestPayload struct {
	// Cells holds "" / "p1" / "p2" per cell, row-major.
	Cells []string `json:"cells"`
}

func (e *ConquestEngine) Init() (interface{}, error) {
	n := e.GridSize * e.GridSize
	return &conquestPayload{Cells: make([]string, n)}, nil
}

type conquestClaim struct {
	Cell int `json:"cell"`
}

func (e *ConquestEngine) Apply(raw json.RawMessage, role string, act Action) (interface{}, bool, error) {
	var p conquestPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, false, err
	}
	if act.Name != "claim" {
		return nil, false, ErrValidation
	}

	var claim conquestClaim
	if err := json.Unmarshal(act.Params, &claim); err != nil {
		return nil, false, ErrValidation
	}
	if claim.Cell < 0 || claim.Cell >= len(p.Cells) {
		return nil, false, ErrValidation
	}

	p.Cells[claim.Cell] = role
	return &p, false, nil
}

func (e *ConquestEngine) Resolve(raw json.RawMessage) (Outcome, interface{}, error) {
	var p conquestPayload
	if err := remarshal(raw, &p); err != nil {
		return Outcome{}, nil, err
	}

	counts := map[string]int{"p1": 0, "p2": 0}
	for _, owner := range p.Cells {
		if owner != "" {
			counts[owner]++
		}
	}

	out := Outcome{Scores: counts}
	switch {
	case counts["p1"] > counts["p2"]:
		out.Winner = "p1"
	case counts["p2"] > counts["p1"]:
		out.Winner = "p2"
	default:
		out.Draw = true
	}
	return out, &p, nil
}

type conquestView struct {
	Cells  []string       `json:"cells"`
	Scores map[string]int `json:"scores"`
}

func (e *ConquestEngine) Project(raw json.RawMessage, role string, status string) (interface{}, error) {
	var p conquestPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}
	counts := map[string]int{"p1": 0, "p2": 0}
	for _, owner := range p.Cells {
		if owner != "" {
			counts[owner]++
		}
	}
	// The whole board is public; nothing to redact.
	return &conquestView{Cells: p.Cells, Scores: counts}, nil
}
