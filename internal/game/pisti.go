package game

import (
	"encoding/json"
)

// PistiEngine implements the two-party trick-capture card game. A played card
// matching the pile's top rank, or a jack, captures the pile; capturing a
// single-card pile by rank match (not with a jack) is a pisti worth a flat 10.
type PistiEngine struct{}

func (e *PistiEngine) Kind() Kind { return KindPisti }

const (
	pistiBonus      = 10
	mostCardsBonus  = 3
	pistiHandSize   = 4
	pistiTableDeal  = 4
	pistiRedealNeed = 2 * pistiHandSize
)

type pistiPayload struct {
	Deck         []Card            `json:"deck"`
	Table        []Card            `json:"table"`
	Hands        map[string][]Card `json:"hands"`
	Turn         string            `json:"turn"`
	Scores       map[string]int    `json:"scores"`
	Counts       map[string]int    `json:"counts"`
	LastCapturer string            `json:"last_capturer"`
	Pistis       int               `json:"pistis"`
	Over         bool              `json:"over"`
}

func pilePoints(cards []Card) int {
	p := 0
	for _, c := range cards {
		p += c.PistiPoints()
	}
	return p
}

func (e *PistiEngine) Init() (interface{}, error) {
	deck := NewShoe(1)

	p := pistiPayload{
		Hands:  map[string][]Card{"p1": {}, "p2": {}},
		Turn:   "p1",
		Scores: map[string]int{"p1": 0, "p2": 0},
		Counts: map[string]int{"p1": 0, "p2": 0},
	}
	p.Table, deck = deck[:pistiTableDeal], deck[pistiTableDeal:]
	p.Hands["p1"], deck = deck[:pistiHandSize], deck[pistiHandSize:]
	p.Hands["p2"], deck = deck[:pistiHandSize], deck[pistiHandSize:]
	p.Deck = deck
	return &p, nil
}

type pistiPlay struct {
	CardIndex int `json:"card_index"`
}

func other(role string) string {
	if role == "p1" {
		return "p2"
	}
	return "p1"
}

func (e *PistiEngine) Apply(raw json.RawMessage, role string, act Action) (interface{}, bool, error) {
	var p pistiPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, false, err
	}
	if act.Name != "play" {
		return nil, false, ErrValidation
	}
	if p.Over {
		return nil, false, ErrStateConflict
	}
	if p.Turn != role {
		return nil, false, ErrStateConflict
	}

	var play pistiPlay
	if err := json.Unmarshal(act.Params, &play); err != nil {
		return nil, false, ErrValidation
	}
	hand := p.Hands[role]
	if play.CardIndex < 0 || play.CardIndex >= len(hand) {
		return nil, false, ErrValidation
	}

	card := hand[play.CardIndex]
	p.Hands[role] = append(hand[:play.CardIndex:play.CardIndex], hand[play.CardIndex+1:]...)

	if len(p.Table) > 0 {
		top := p.Table[len(p.Table)-1]
		wild := card.Rank == Jack
		if card.Rank == top.Rank || wild {
			if len(p.Table) == 1 && !wild {
				p.Scores[role] += pistiBonus
				p.Pistis++
			} else {
				p.Scores[role] += pilePoints(p.Table) + card.PistiPoints()
			}
			p.Counts[role] += len(p.Table) + 1
			p.Table = nil
			p.LastCapturer = role
		} else {
			p.Table = append(p.Table, card)
		}
	} else {
		p.Table = append(p.Table, card)
	}

	p.Turn = other(role)

	// Redeal when both hands are empty; finish when the deck can no longer
	// serve a full redeal.
	if len(p.Hands["p1"]) == 0 && len(p.Hands["p2"]) == 0 {
		if len(p.Deck) >= pistiRedealNeed {
			p.Hands["p1"], p.Deck = p.Deck[:pistiHandSize], p.Deck[pistiHandSize:]
			p.Hands["p2"], p.Deck = p.Deck[:pistiHandSize], p.Deck[pistiHandSize:]
		} else {
			if len(p.Table) > 0 && p.LastCapturer != "" {
				p.Scores[p.LastCapturer] += pilePoints(p.Table)
				p.Counts[p.LastCapturer] += len(p.Table)
				p.Table = nil
			}
			p.Over = true
			return &p, true, nil
		}
	}

	return &p, false, nil
}

func (e *PistiEngine) Resolve(raw json.RawMessage) (Outcome, interface{}, error) {
	var p pistiPayload
	if err := remarshal(raw, &p); err != nil {
		return Outcome{}, nil, err
	}

	scores := map[string]int{"p1": p.Scores["p1"], "p2": p.Scores["p2"]}
	// Strictly more captured cards earns the bonus; a tie in counts pays
	// neither side.
	if p.Counts["p1"] > p.Counts["p2"] {
		scores["p1"] += mostCardsBonus
	} else if p.Counts["p2"] > p.Counts["p1"] {
		scores["p2"] += mostCardsBonus
	}

	out := Outcome{Scores: scores}
	switch {
	case scores["p1"] > scores["p2"]:
		out.Winner = "p1"
	case scores["p2"] > scores["p1"]:
		out.Winner = "p2"
	default:
		out.Draw = true
	}
	return out, &p, nil
}

type pistiView struct {
	Hand         []Card         `json:"hand"`
	OpponentSize int            `json:"opponent_size"`
	Table        []Card         `json:"table"`
	DeckSize     int            `json:"deck_size"`
	Turn         string         `json:"turn"`
	Scores       map[string]int `json:"scores"`
	Counts       map[string]int `json:"counts"`
	Pistis       int            `json:"pistis"`
	Over         bool           `json:"over"`
}

func (e *PistiEngine) Project(raw json.RawMessage, role string, status string) (interface{}, error) {
	var p pistiPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}
	v := pistiView{
		Table:        p.Table,
		DeckSize:     len(p.Deck),
		Turn:         p.Turn,
		Scores:       p.Scores,
		Counts:       p.Counts,
		Pistis:       p.Pistis,
		Over:         p.Over,
	}
	if role != "" {
		v.Hand = p.Hands[role]
		v.OpponentSize = len(p.Hands[other(role)])
	}
	return &v, nil
}
