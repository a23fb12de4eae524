package game

import (
	"encoding/json"
	"testing"
)

func mustRaw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func card(r Rank, s Suit) Card { return Card{Suit: s, Rank: r} }

func TestHandTotal(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
		total int
		soft  bool
	}{
		{"hard 17", []Card{card(Ten, Spades), card(Seven, Hearts)}, 17, false},
		{"soft 17", []Card{card(Ace, Spades), card(Six, Hearts)}, 17, true},
		{"natural", []Card{card(Ace, Spades), card(King, Hearts)}, 21, true},
		{"ace demoted once", []Card{card(Ace, Spades), card(Nine, Hearts), card(Five, Clubs)}, 15, false},
		{"two aces", []Card{card(Ace, Spades), card(Ace, Hearts)}, 12, true},
		{"two aces plus nine", []Card{card(Ace, Spades), card(Ace, Hearts), card(Nine, Clubs)}, 21, true},
		{"bust", []Card{card(King, Spades), card(Queen, Hearts), card(Five, Clubs)}, 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, soft := HandTotal(tt.cards)
			if total != tt.total || soft != tt.soft {
				t.Errorf("HandTotal = (%d, %v), want (%d, %v)", total, soft, tt.total, tt.soft)
			}
		})
	}
}

// resolvePayload runs Resolve on a hand-built payload.
func resolvePayload(t *testing.T, p *blackjackPayload, bet int64) int64 {
	t.Helper()
	e := &BlackjackEngine{Decks: 1}
	payout, _, err := e.Resolve(mustRaw(t, p), bet)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return payout
}

func TestResolvePlayerStands17DealerDrawsTo19(t *testing.T) {
	// Scenario: bet 1000, player stands on 17, dealer 10+6 draws a 3 to 19.
	p := &blackjackPayload{
		Deck:   []Card{card(Three, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 0 {
		t.Errorf("payout = %d, want 0 (dealer 19 beats 17)", payout)
	}
}

func TestResolveDealerStandsOnHard17(t *testing.T) {
	p := &blackjackPayload{
		Deck:   []Card{card(King, Clubs)}, // would bust the dealer if drawn
		Dealer: []Card{card(Ten, Spades), card(Seven, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Eight, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 2000 {
		t.Errorf("payout = %d, want 2000 (18 beats hard 17, dealer must stand)", payout)
	}
}

func TestResolveDealerDrawsOnSoft17(t *testing.T) {
	// Dealer A+6 is soft 17 and must draw; the 4 makes 21 and beats 18.
	p := &blackjackPayload{
		Deck:   []Card{card(Four, Clubs)},
		Dealer: []Card{card(Ace, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Eight, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 0 {
		t.Errorf("payout = %d, want 0 (dealer drew on soft 17 to 21)", payout)
	}
}

func TestResolveNaturalPaysThreeToTwo(t *testing.T) {
	p := &blackjackPayload{
		Dealer: []Card{card(Ten, Spades), card(Nine, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ace, Clubs), card(King, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 2500 {
		t.Errorf("payout = %d, want 2500 (stake + 3:2)", payout)
	}
}

func TestResolveNaturalVsDealerNaturalPushes(t *testing.T) {
	p := &blackjackPayload{
		Dealer: []Card{card(Ace, Spades), card(King, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ace, Clubs), card(Queen, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 1000 {
		t.Errorf("payout = %d, want 1000 (push refunds stake)", payout)
	}
}

func TestResolveDealerBustPaysDouble(t *testing.T) {
	p := &blackjackPayload{
		Deck:   []Card{card(King, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Two, Diamonds)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 2000 {
		t.Errorf("payout = %d, want 2000", payout)
	}
}

func TestResolveBustedHandForfeitsEvenIfDealerBusts(t *testing.T) {
	p := &blackjackPayload{
		Deck:   []Card{card(King, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Nine, Diamonds), card(Five, Spades)}, Bet: 1000, Stood: true}},
	}
	if payout := resolvePayload(t, p, 1000); payout != 0 {
		t.Errorf("payout = %d, want 0 (busted hand never pays)", payout)
	}
}

func TestResolveInsurancePaysOnDealerNatural(t *testing.T) {
	p := &blackjackPayload{
		Dealer:    []Card{card(Ace, Spades), card(King, Hearts)},
		Hands:     []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000, Stood: true}},
		Insurance: 500,
	}
	// Hand loses to the natural; insurance returns 500*3.
	if payout := resolvePayload(t, p, 1000); payout != 1500 {
		t.Errorf("payout = %d, want 1500", payout)
	}
}

func TestApplyHitAutoStandsAtTwentyOne(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Four, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000}},
	}
	updated, res, err := e.Apply(mustRaw(t, p), Action{Name: "hit"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	out := updated.(*blackjackPayload)
	if !out.Hands[0].Stood {
		t.Error("hand should auto-stand at 21")
	}
	if !res.Finished {
		t.Error("session should be finished once all hands stood")
	}
}

func TestApplyDoubleLocksMatchingStake(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Ten, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Five, Clubs), card(Six, Diamonds)}, Bet: 1000}},
	}
	updated, res, err := e.Apply(mustRaw(t, p), Action{Name: "double"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ExtraDebit != 1000 {
		t.Errorf("ExtraDebit = %d, want 1000", res.ExtraDebit)
	}
	out := updated.(*blackjackPayload)
	if out.Hands[0].Bet != 2000 || len(out.Hands[0].Cards) != 3 || !out.Hands[0].Stood {
		t.Errorf("double should double the stake, draw one card and stand: %+v", out.Hands[0])
	}
	if !res.Finished {
		t.Error("single doubled hand should finish the round")
	}
}

func TestApplyDoubleRejectedAfterHit(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Ten, Clubs)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Two, Clubs), card(Three, Diamonds), card(Four, Spades)}, Bet: 1000}},
		Moves:  1,
	}
	if _, _, err := e.Apply(mustRaw(t, p), Action{Name: "double"}); err != ErrStateConflict {
		t.Errorf("err = %v, want ErrStateConflict", err)
	}
}

func TestApplySplitYieldsTwoHands(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Two, Clubs), card(Three, Diamonds)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(King, Clubs), card(Ten, Diamonds)}, Bet: 1000}},
	}
	updated, res, err := e.Apply(mustRaw(t, p), Action{Name: "split"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ExtraDebit != 1000 {
		t.Errorf("ExtraDebit = %d, want 1000", res.ExtraDebit)
	}
	out := updated.(*blackjackPayload)
	if len(out.Hands) != 2 {
		t.Fatalf("hands = %d, want 2", len(out.Hands))
	}
	for i, h := range out.Hands {
		if len(h.Cards) != 2 || h.Bet != 1000 {
			t.Errorf("hand %d after split: %+v", i, h)
		}
	}
}

func TestApplySplitRequiresEqualRankValue(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Two, Clubs), card(Three, Diamonds)},
		Dealer: []Card{card(Ten, Spades), card(Six, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(King, Clubs), card(Nine, Diamonds)}, Bet: 1000}},
	}
	if _, _, err := e.Apply(mustRaw(t, p), Action{Name: "split"}); err != ErrValidation {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestApplyInsuranceOnlyAgainstAce(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}

	p := &blackjackPayload{
		Dealer: []Card{card(Ace, Spades), card(King, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000}},
	}
	updated, res, err := e.Apply(mustRaw(t, p), Action{Name: "insurance"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ExtraDebit != 500 {
		t.Errorf("insurance debit = %d, want half the primary bet", res.ExtraDebit)
	}
	if updated.(*blackjackPayload).Insurance != 500 {
		t.Error("insurance stake not recorded")
	}

	noAce := &blackjackPayload{
		Dealer: []Card{card(King, Spades), card(Ace, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000}},
	}
	if _, _, err := e.Apply(mustRaw(t, noAce), Action{Name: "insurance"}); err != ErrStateConflict {
		t.Errorf("err = %v, want ErrStateConflict when dealer shows no ace", err)
	}
}

func TestStartDealsTwoAndTwo(t *testing.T) {
	e := &BlackjackEngine{Decks: 4}
	payload, _, err := e.Start(1000, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := payload.(*blackjackPayload)
	if len(p.Hands) != 1 || len(p.Hands[0].Cards) != 2 || len(p.Dealer) != 2 {
		t.Errorf("bad deal: hands=%d dealer=%d", len(p.Hands), len(p.Dealer))
	}
	if len(p.Deck) != 4*52-4 {
		t.Errorf("deck = %d cards, want %d", len(p.Deck), 4*52-4)
	}
}

func TestProjectHidesHoleCardUntilFinished(t *testing.T) {
	e := &BlackjackEngine{Decks: 1}
	p := &blackjackPayload{
		Deck:   []Card{card(Two, Clubs)},
		Dealer: []Card{card(Ace, Spades), card(King, Hearts)},
		Hands:  []bjHand{{Cards: []Card{card(Ten, Clubs), card(Seven, Diamonds)}, Bet: 1000}},
	}

	proj, err := e.Project(mustRaw(t, p), StatePlaying)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	v := proj.(*blackjackView)
	if len(v.Dealer) != 1 || !v.DealerHidden {
		t.Errorf("live projection must show only the upcard: %+v", v)
	}
	if !v.InsuranceOffered {
		t.Error("insurance should be offered against a showing ace")
	}

	proj, err = e.Project(mustRaw(t, p), StateFinished)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	v = proj.(*blackjackView)
	if len(v.Dealer) != 2 || v.DealerHidden {
		t.Errorf("finished projection must reveal the hole card: %+v", v)
	}
}
