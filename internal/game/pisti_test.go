package game

import (
	"encoding/json"
	"testing"
)

func playAction(idx int) Action {
	params, _ := json.Marshal(pistiPlay{CardIndex: idx})
	return Action{Name: "play", Params: params}
}

func pistiBase() *pistiPayload {
	return &pistiPayload{
		Deck:   NewShoe(1)[:20],
		Hands:  map[string][]Card{"p1": {}, "p2": {}},
		Turn:   "p1",
		Scores: map[string]int{"p1": 0, "p2": 0},
		Counts: map[string]int{"p1": 0, "p2": 0},
	}
}

func TestPistiInitDealsTableAndHands(t *testing.T) {
	e := &PistiEngine{}
	payload, err := e.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	p := payload.(*pistiPayload)
	if len(p.Table) != 4 || len(p.Hands["p1"]) != 4 || len(p.Hands["p2"]) != 4 {
		t.Errorf("deal = table:%d p1:%d p2:%d, want 4/4/4", len(p.Table), len(p.Hands["p1"]), len(p.Hands["p2"]))
	}
	if len(p.Deck) != 52-12 {
		t.Errorf("deck = %d, want 40", len(p.Deck))
	}
	if p.Turn != "p1" {
		t.Errorf("turn = %s, want p1", p.Turn)
	}
}

func TestPistiRankMatchCapturesPile(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Table = []Card{card(Five, Hearts), card(Nine, Clubs)}
	p.Hands["p1"] = []Card{card(Nine, Spades), card(Two, Hearts)}
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	updated, finished, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil || finished {
		t.Fatalf("play: err=%v finished=%v", err, finished)
	}
	out := updated.(*pistiPayload)
	if len(out.Table) != 0 {
		t.Error("pile should be captured on rank match")
	}
	if out.Counts["p1"] != 3 {
		t.Errorf("captured count = %d, want 3", out.Counts["p1"])
	}
	if out.LastCapturer != "p1" {
		t.Errorf("last capturer = %s, want p1", out.LastCapturer)
	}
	if out.Turn != "p2" {
		t.Errorf("turn = %s, want p2", out.Turn)
	}
}

func TestPistiSingleCardRankCaptureScoresBonus(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Table = []Card{card(Seven, Hearts)}
	p.Hands["p1"] = []Card{card(Seven, Spades), card(Two, Hearts)}
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	updated, _, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	out := updated.(*pistiPayload)
	if out.Scores["p1"] != pistiBonus {
		t.Errorf("score = %d, want flat pisti bonus %d", out.Scores["p1"], pistiBonus)
	}
	if out.Pistis != 1 {
		t.Errorf("pistis = %d, want 1", out.Pistis)
	}
}

func TestPistiJackCapturesWithoutBonus(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Table = []Card{card(Seven, Hearts)}
	p.Hands["p1"] = []Card{card(Jack, Spades), card(Two, Hearts)}
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	updated, _, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	out := updated.(*pistiPayload)
	if len(out.Table) != 0 {
		t.Error("jack must capture the pile")
	}
	// Face values only: 7 is worth 0, the jack 1. No pisti bonus with a jack.
	if out.Scores["p1"] != 1 {
		t.Errorf("score = %d, want 1", out.Scores["p1"])
	}
	if out.Pistis != 0 {
		t.Errorf("pistis = %d, want 0", out.Pistis)
	}
}

func TestPistiNoMatchAddsToPile(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Table = []Card{card(Five, Hearts)}
	p.Hands["p1"] = []Card{card(Nine, Spades), card(Two, Hearts)}
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	updated, _, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	out := updated.(*pistiPayload)
	if len(out.Table) != 2 {
		t.Errorf("table = %d cards, want 2", len(out.Table))
	}
}

func TestPistiOutOfTurnRejected(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	if _, _, err := e.Apply(mustRaw(t, p), "p2", playAction(0)); err != ErrStateConflict {
		t.Errorf("err = %v, want ErrStateConflict", err)
	}
}

func TestPistiDeckExhaustionAwardsPileToLastCapturer(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Deck = nil
	p.Table = []Card{card(Ten, Diamonds), card(Five, Hearts)} // 3 points on the table
	p.Hands["p1"] = []Card{card(Two, Hearts)}
	p.Hands["p2"] = []Card{}
	p.LastCapturer = "p2"

	updated, finished, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !finished {
		t.Fatal("empty hands with an exhausted deck must finish the game")
	}
	out := updated.(*pistiPayload)
	if !out.Over {
		t.Error("payload not marked over")
	}
	// Leftover pile (table + the just-played 2H) goes to the last capturer.
	if out.Counts["p2"] != 3 {
		t.Errorf("leftover count = %d, want 3", out.Counts["p2"])
	}
	if out.Scores["p2"] != 3 {
		t.Errorf("leftover score = %d, want 3 (diamond ten)", out.Scores["p2"])
	}
}

func TestPistiRedealWhenHandsEmpty(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Table = []Card{card(Five, Hearts)}
	p.Hands["p1"] = []Card{card(Nine, Spades)}
	p.Hands["p2"] = []Card{}

	updated, finished, err := e.Apply(mustRaw(t, p), "p1", playAction(0))
	if err != nil || finished {
		t.Fatalf("play: err=%v finished=%v", err, finished)
	}
	out := updated.(*pistiPayload)
	if len(out.Hands["p1"]) != 4 || len(out.Hands["p2"]) != 4 {
		t.Errorf("redeal = p1:%d p2:%d, want 4/4", len(out.Hands["p1"]), len(out.Hands["p2"]))
	}
	if len(out.Deck) != 12 {
		t.Errorf("deck = %d, want 12", len(out.Deck))
	}
}

func TestPistiResolveMostCardsBonusAndWinner(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Over = true
	p.Scores = map[string]int{"p1": 10, "p2": 12}
	p.Counts = map[string]int{"p1": 30, "p2": 22}

	out, _, err := e.Resolve(mustRaw(t, p))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// p1 gets +3 for strictly more cards: 13 beats 12.
	if out.Winner != "p1" || out.Draw {
		t.Errorf("outcome = %+v, want p1 win", out)
	}
	if out.Scores["p1"] != 13 {
		t.Errorf("p1 final = %d, want 13", out.Scores["p1"])
	}
}

func TestPistiResolveTieSplitsPot(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Over = true
	p.Scores = map[string]int{"p1": 12, "p2": 12}
	p.Counts = map[string]int{"p1": 26, "p2": 26}

	out, _, err := e.Resolve(mustRaw(t, p))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Draw {
		t.Errorf("outcome = %+v, want draw", out)
	}
}

func TestPistiProjectionHidesOpponentHandAndDeck(t *testing.T) {
	e := &PistiEngine{}
	p := pistiBase()
	p.Hands["p1"] = []Card{card(Nine, Spades), card(Two, Hearts)}
	p.Hands["p2"] = []Card{card(Three, Hearts)}

	proj, err := e.Project(mustRaw(t, p), "p1", RoomPlaying)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	v := proj.(*pistiView)
	if len(v.Hand) != 2 || v.OpponentSize != 1 {
		t.Errorf("projection = hand:%d opp:%d, want 2/1", len(v.Hand), v.OpponentSize)
	}
}
