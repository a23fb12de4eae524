package game

import (
	"encoding/json"
	"math"

	"github.com/playmatrix/backend/internal/fair"
)

// MinesEngine implements the cell-reveal game: n cells, m hidden mines, a
// hypergeometric payout curve and voluntary cashout.
type MinesEngine struct {
	Cells        int
	DefaultMines int
	Edge         float64
}

func (e *MinesEngine) Kind() Kind { return KindMines }

type minesParams struct {
	Mines int `json:"mines"`
}

type minesPayload struct {
	Cells    int     `json:"cells"`
	Mines    []int   `json:"mines"`
	Revealed []int   `json:"revealed"`
	Edge     float64 `json:"edge"`
	Busted   bool    `json:"busted"`
	CashedAt int     `json:"cashed_at"` // safe reveals at cashout, 0 while live
}

func (p *minesPayload) isRevealed(cell int) bool {
	for _, r := range p.Revealed {
		if r == cell {
			return true
		}
	}
	return false
}

func (p *minesPayload) isMine(cell int) bool {
	for _, m := range p.Mines {
		if m == cell {
			return true
		}
	}
	return false
}

func (e *MinesEngine) Start(bet int64, params json.RawMessage) (interface{}, bool, error) {
	mines := e.DefaultMines
	if len(params) > 0 {
		var mp minesParams
		if err := json.Unmarshal(params, &mp); err != nil {
			return nil, false, ErrValidation
		}
		if mp.Mines != 0 {
			mines = mp.Mines
		}
	}
	if mines < 1 || mines >= e.Cells {
		return nil, false, ErrValidation
	}

	p := minesPayload{
		Cells: e.Cells,
		Mines: fair.SampleWithoutReplacement(e.Cells, mines),
		Edge:  e.Edge,
	}
	return &p, false, nil
}

type minesReveal struct {
	Cell int `json:"cell"`
}

func (e *MinesEngine) Apply(raw json.RawMessage, act Action) (interface{}, StepResult, error) {
	var p minesPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, StepResult{}, err
	}
	if p.Busted || p.CashedAt > 0 {
		return nil, StepResult{}, ErrStateConflict
	}

	var res StepResult
	switch act.Name {
	case "reveal":
		var rv minesReveal
		if err := json.Unmarshal(act.Params, &rv); err != nil {
			return nil, res, ErrValidation
		}
		if rv.Cell < 0 || rv.Cell >= p.Cells {
			return nil, res, ErrValidation
		}
		if p.isRevealed(rv.Cell) {
			return nil, res, ErrStateConflict
		}
		if p.isMine(rv.Cell) {
			p.Busted = true
			res.Finished = true
			return &p, res, nil
		}
		p.Revealed = append(p.Revealed, rv.Cell)
		// Clearing every safe cell auto-cashouts.
		if len(p.Revealed) >= p.Cells-len(p.Mines) {
			p.CashedAt = len(p.Revealed)
			res.Finished = true
		}

	case "cashout":
		if len(p.Revealed) < 1 {
			return nil, res, ErrStateConflict
		}
		p.CashedAt = len(p.Revealed)
		res.Finished = true

	default:
		return nil, res, ErrValidation
	}

	return &p, res, nil
}

func (e *MinesEngine) Resolve(raw json.RawMessage, bet int64) (int64, interface{}, error) {
	var p minesPayload
	if err := remarshal(raw, &p); err != nil {
		return 0, nil, err
	}
	if p.Busted {
		return 0, &p, nil
	}
	if p.CashedAt == 0 {
		// Force-resolved before any reveal: the stake comes back untouched.
		return bet, &p, nil
	}
	mult := fair.MinesMultiplier(p.Cells, len(p.Mines), p.CashedAt, p.Edge)
	return int64(math.Floor(float64(bet) * mult)), &p, nil
}

// ForceFinish cashes out whatever has been safely revealed so far; with no
// reveals the resolve step refunds the stake instead.
func (e *MinesEngine) ForceFinish(raw json.RawMessage) (interface{}, error) {
	var p minesPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}
	if !p.Busted && p.CashedAt == 0 {
		p.CashedAt = len(p.Revealed)
	}
	return &p, nil
}

type minesView struct {
	Cells      int     `json:"cells"`
	MineCount  int     `json:"mine_count"`
	Revealed   []int   `json:"revealed"`
	Multiplier float64 `json:"multiplier"`
	Next       float64 `json:"next_multiplier,omitempty"`
	Busted     bool    `json:"busted"`
	Mines      []int   `json:"mines,omitempty"`
}

func (e *MinesEngine) Project(raw json.RawMessage, state State) (interface{}, error) {
	var p minesPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}

	v := minesView{
		Cells:      p.Cells,
		MineCount:  len(p.Mines),
		Revealed:   p.Revealed,
		Multiplier: fair.MinesMultiplier(p.Cells, len(p.Mines), len(p.Revealed), p.Edge),
		Busted:     p.Busted,
	}
	if state == StateFinished {
		// Mine layout is disclosed only after loss or cashout.
		v.Mines = p.Mines
	} else {
		v.Next = fair.MinesMultiplier(p.Cells, len(p.Mines), len(p.Revealed)+1, p.Edge)
	}
	return &v, nil
}
