package game

import (
	"encoding/json"
)

// BlackjackEngine implements the dealer-vs-player card game. The dealer has
// no discretion: draw while under 17, draw on soft 17, stand otherwise.
type BlackjackEngine struct {
	Decks int
}

func (e *BlackjackEngine) Kind() Kind { return KindBlackjack }

type bjHand struct {
	Cards   []Card `json:"cards"`
	Bet     int64  `json:"bet"`
	Stood   bool   `json:"stood"`
	Doubled bool   `json:"doubled"`
}

type blackjackPayload struct {
	Deck      []Card   `json:"deck"`
	Dealer    []Card   `json:"dealer"`
	Hands     []bjHand `json:"hands"`
	Active    int      `json:"active"`
	Insurance int64    `json:"insurance"`
	Split     bool     `json:"split"`
	Moves     int      `json:"moves"`
}

// HandTotal values aces at 11 and demotes them to 1 one at a time while the
// total would bust. soft reports whether an ace is still counted as 11.
func HandTotal(cards []Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		v := c.BlackjackValue()
		if c.Rank == Ace {
			aces++
		}
		total += v
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

func isNatural(cards []Card) bool {
	if len(cards) != 2 {
		return false
	}
	t, _ := HandTotal(cards)
	return t == 21
}

func (e *BlackjackEngine) Start(bet int64, params json.RawMessage) (interface{}, bool, error) {
	deck := NewShoe(e.Decks)

	p := blackjackPayload{Deck: deck}

	var c Card
	var ok bool
	hand := bjHand{Bet: bet}
	for i := 0; i < 2; i++ {
		c, p.Deck, ok = draw(p.Deck)
		if !ok {
			return nil, false, ErrStateConflict
		}
		hand.Cards = append(hand.Cards, c)
	}
	for i := 0; i < 2; i++ {
		c, p.Deck, ok = draw(p.Deck)
		if !ok {
			return nil, false, ErrStateConflict
		}
		p.Dealer = append(p.Dealer, c)
	}
	p.Hands = []bjHand{hand}

	// A dealt 21 stands immediately; settlement decides natural vs push.
	finished := false
	if isNatural(hand.Cards) {
		p.Hands[0].Stood = true
		finished = true
	}
	return &p, finished, nil
}

// advance moves the active cursor to the next undecided hand. Returns true
// when every hand has stood.
func (p *blackjackPayload) advance() bool {
	for i := p.Active; i < len(p.Hands); i++ {
		if !p.Hands[i].Stood {
			p.Active = i
			return false
		}
	}
	return true
}

func (p *blackjackPayload) hit(h *bjHand) error {
	c, rest, ok := draw(p.Deck)
	if !ok {
		return ErrStateConflict
	}
	p.Deck = rest
	h.Cards = append(h.Cards, c)
	return nil
}

func (e *BlackjackEngine) Apply(raw json.RawMessage, act Action) (interface{}, StepResult, error) {
	var p blackjackPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, StepResult{}, err
	}
	if p.Active >= len(p.Hands) {
		return nil, StepResult{}, ErrStateConflict
	}
	hand := &p.Hands[p.Active]
	if hand.Stood {
		return nil, StepResult{}, ErrStateConflict
	}

	var res StepResult
	switch act.Name {
	case "hit":
		if err := p.hit(hand); err != nil {
			return nil, res, err
		}
		p.Moves++
		if t, _ := HandTotal(hand.Cards); t >= 21 {
			hand.Stood = true
		}

	case "stand":
		hand.Stood = true
		p.Moves++

	case "double":
		// First decision on an unmodified two-card hand only.
		if len(hand.Cards) != 2 || hand.Doubled {
			return nil, res, ErrStateConflict
		}
		res.ExtraDebit = hand.Bet
		hand.Bet *= 2
		hand.Doubled = true
		if err := p.hit(hand); err != nil {
			return nil, res, err
		}
		hand.Stood = true
		p.Moves++

	case "split":
		if p.Split || len(p.Hands) != 1 || len(hand.Cards) != 2 || p.Moves != 0 {
			return nil, res, ErrStateConflict
		}
		if hand.Cards[0].BlackjackValue() != hand.Cards[1].BlackjackValue() {
			return nil, res, ErrValidation
		}
		res.ExtraDebit = hand.Bet
		first := bjHand{Cards: []Card{hand.Cards[0]}, Bet: hand.Bet}
		second := bjHand{Cards: []Card{hand.Cards[1]}, Bet: hand.Bet}
		p.Hands = []bjHand{first, second}
		for i := range p.Hands {
			if err := p.hit(&p.Hands[i]); err != nil {
				return nil, res, err
			}
		}
		p.Split = true
		p.Active = 0
		p.Moves++

	case "insurance":
		// Offered only against a showing ace, before any other decision.
		if len(p.Dealer) == 0 || p.Dealer[0].Rank != Ace {
			return nil, res, ErrStateConflict
		}
		if p.Insurance > 0 || p.Moves != 0 || p.Split {
			return nil, res, ErrStateConflict
		}
		p.Insurance = hand.Bet / 2
		res.ExtraDebit = p.Insurance
		return &p, res, nil

	default:
		return nil, res, ErrValidation
	}

	res.Finished = p.advance()
	return &p, res, nil
}

func (e *BlackjackEngine) Resolve(raw json.RawMessage, bet int64) (int64, interface{}, error) {
	var p blackjackPayload
	if err := remarshal(raw, &p); err != nil {
		return 0, nil, err
	}

	dealerNatural := isNatural(p.Dealer)

	// Fixed dealer policy, skipped entirely on a dealer natural.
	if !dealerNatural {
		anyLive := false
		for _, h := range p.Hands {
			if t, _ := HandTotal(h.Cards); t <= 21 {
				anyLive = true
			}
		}
		for anyLive {
			t, soft := HandTotal(p.Dealer)
			if t < 17 || (t == 17 && soft) {
				c, rest, ok := draw(p.Deck)
				if !ok {
					break
				}
				p.Deck = rest
				p.Dealer = append(p.Dealer, c)
				continue
			}
			break
		}
	}
	dealerTotal, _ := HandTotal(p.Dealer)

	var payout int64
	if p.Insurance > 0 && dealerNatural {
		// 2:1 plus the insurance stake back.
		payout += p.Insurance * 3
	}

	for _, h := range p.Hands {
		total, _ := HandTotal(h.Cards)
		if total > 21 {
			continue
		}
		natural := !p.Split && isNatural(h.Cards) && !h.Doubled
		switch {
		case natural && dealerNatural:
			payout += h.Bet
		case natural:
			payout += h.Bet * 5 / 2
		case dealerNatural:
			// hand loses
		case dealerTotal > 21 || total > dealerTotal:
			payout += h.Bet * 2
		case total == dealerTotal:
			payout += h.Bet
		}
	}

	return payout, &p, nil
}

// ForceFinish stands every hand as dealt; settlement then plays the dealer
// out normally.
func (e *BlackjackEngine) ForceFinish(raw json.RawMessage) (interface{}, error) {
	var p blackjackPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}
	for i := range p.Hands {
		p.Hands[i].Stood = true
	}
	return &p, nil
}

// blackjackView is the public projection; the hole card and the shoe stay
// hidden while the session is live.
type blackjackView struct {
	Dealer           []Card   `json:"dealer"`
	DealerHidden     bool     `json:"dealer_hidden"`
	DealerTotal      int      `json:"dealer_total,omitempty"`
	Hands            []bjHand `json:"hands"`
	Active           int      `json:"active"`
	Insurance        int64    `json:"insurance"`
	InsuranceOffered bool     `json:"insurance_offered"`
}

func (e *BlackjackEngine) Project(raw json.RawMessage, state State) (interface{}, error) {
	var p blackjackPayload
	if err := remarshal(raw, &p); err != nil {
		return nil, err
	}

	v := blackjackView{
		Hands:     p.Hands,
		Active:    p.Active,
		Insurance: p.Insurance,
	}
	if state == StateFinished {
		v.Dealer = p.Dealer
		v.DealerTotal, _ = HandTotal(p.Dealer)
	} else {
		if len(p.Dealer) > 0 {
			v.Dealer = p.Dealer[:1]
		}
		v.DealerHidden = true
		v.InsuranceOffered = len(p.Dealer) > 0 && p.Dealer[0].Rank == Ace && p.Insurance == 0 && p.Moves == 0
	}
	return &v, nil
}
