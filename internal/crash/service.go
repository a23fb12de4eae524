package crash

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/fair"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/ledger"
	"github.com/playmatrix/backend/internal/models"
	"github.com/playmatrix/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

// Round phases. The scheduler is the only writer; request paths read the
// published snapshot.
const (
	PhaseCountdown = "COUNTDOWN"
	PhaseFlying    = "FLYING"
	PhaseCrashed   = "CRASHED"
)

// Channel carries round events to websocket feeds via Redis pub/sub.
const Channel = "crash:events"

const maxSlots = 2

// Event is one pub/sub frame: a phase change or a multiplier tick.
type Event struct {
	Type       string  `json:"type"` // "phase" or "tick"
	RoundID    string  `json:"round_id"`
	Phase      string  `json:"phase"`
	Commitment string  `json:"commitment,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	CrashPoint float64 `json:"crash_point,omitempty"`
	ServerSeed string  `json:"server_seed,omitempty"`
	StartsInMs int64   `json:"starts_in_ms,omitempty"`
}

// round is the scheduler's private state for the current round. seed and
// point exist from the start but leave the struct only after the crash.
type round struct {
	id         string
	seed       string
	commitment string
	point      float64
	phase      string
	flyStart   time.Time // zero until FLYING
	betsOpen   time.Time // countdown end
}

// Snapshot is the public view of the current round.
type Snapshot struct {
	RoundID    string  `json:"round_id"`
	Phase      string  `json:"phase"`
	Commitment string  `json:"commitment"`
	Multiplier float64 `json:"multiplier"`
	CrashPoint float64 `json:"crash_point,omitempty"`
	ServerSeed string  `json:"server_seed,omitempty"`
	StartsInMs int64   `json:"starts_in_ms,omitempty"`
}

// Service runs the shared crash round loop and serves the per-subject stake
// operations against it. Round phase transitions happen only on the scheduler
// goroutine; bets and cashouts validate against the snapshot and then settle
// through row-locked stake rows, so a stale read can reject but never pay
// twice.
type Service struct {
	db     *sqlx.DB
	rdb    *redis.Client
	stakes *store.CrashStakes
	rounds *store.CrashRounds
	cfg    *config.Config

	mu  sync.RWMutex
	cur *round
}

func New(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		rdb:    rdb,
		stakes: store.NewCrashStakes(db),
		rounds: store.NewCrashRounds(db),
		cfg:    cfg,
	}
}

func newRoundID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Run drives the round loop until ctx is cancelled. Call in a goroutine from
// main.
func (s *Service) Run(ctx context.Context) {
	log.Printf("[CRASH] Scheduler started: countdown=%ds cooldown=%ds rate=%.3f",
		s.cfg.CrashCountdownSeconds, s.cfg.CrashCooldownSeconds, s.cfg.CrashGrowthRate)
	for {
		if ctx.Err() != nil {
			return
		}
		s.runRound(ctx)
	}
}

func (s *Service) runRound(ctx context.Context) {
	seed := fair.NewSeed()
	r := &round{
		id:         newRoundID(),
		seed:       seed,
		commitment: fair.Commitment(seed),
		point:      fair.CrashPoint(seed, s.cfg.CrashEdge),
		phase:      PhaseCountdown,
		betsOpen:   time.Now().Add(time.Duration(s.cfg.CrashCountdownSeconds) * time.Second),
	}
	if err := s.rounds.Insert(r.id, r.commitment); err != nil {
		log.Printf("[CRASH] Round insert failed: %v", err)
		s.sleep(ctx, time.Second)
		return
	}

	s.setRound(r)
	s.publish(ctx, Event{Type: "phase", RoundID: r.id, Phase: PhaseCountdown,
		Commitment: r.commitment, StartsInMs: time.Until(r.betsOpen).Milliseconds()})

	if !s.sleep(ctx, time.Until(r.betsOpen)) {
		return
	}

	s.setPhase(r, PhaseFlying)
	s.publish(ctx, Event{Type: "phase", RoundID: r.id, Phase: PhaseFlying, Commitment: r.commitment})

	flight := time.Duration(fair.FlightDuration(r.point, s.cfg.CrashGrowthRate) * float64(time.Second))
	crashAt := time.Now().Add(flight)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for flying := true; flying; {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !now.Before(crashAt) {
				flying = false
			} else {
				s.publish(ctx, Event{Type: "tick", RoundID: r.id, Phase: PhaseFlying,
					Multiplier: s.multiplierNow(r)})
			}
		}
	}

	s.setPhase(r, PhaseCrashed)
	if err := s.rounds.Reveal(r.id, r.seed, r.point); err != nil {
		log.Printf("[CRASH] Reveal persist failed: round=%s err=%v", r.id, err)
	}
	s.publish(ctx, Event{Type: "phase", RoundID: r.id, Phase: PhaseCrashed,
		CrashPoint: r.point, ServerSeed: r.seed})
	log.Printf("[CRASH] Crashed: round=%s point=%.2f", r.id, r.point)

	s.sleep(ctx, time.Duration(s.cfg.CrashCooldownSeconds)*time.Second)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Service) setRound(r *round) {
	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()
}

func (s *Service) setPhase(r *round, phase string) {
	s.mu.Lock()
	r.phase = phase
	if phase == PhaseFlying {
		r.flyStart = time.Now()
	}
	s.mu.Unlock()
}

func (s *Service) current() *round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// multiplierNow reads the displayed multiplier for a flying round, capped at
// the crash point.
func (s *Service) multiplierNow(r *round) float64 {
	s.mu.RLock()
	start := r.flyStart
	s.mu.RUnlock()
	if start.IsZero() {
		return 1.0
	}
	m := fair.CrashMultiplierAt(time.Since(start).Seconds(), s.cfg.CrashGrowthRate)
	if m > r.point {
		m = r.point
	}
	return m
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, Channel, b).Err(); err != nil {
		log.Printf("[CRASH] Publish failed: %v", err)
	}
}

// State returns the public snapshot of the current round plus the caller's
// stakes in it.
func (s *Service) State(ctx context.Context, subjectID string) (*Snapshot, []models.CrashStake, error) {
	r := s.current()
	if r == nil {
		return nil, nil, game.ErrNotFound
	}

	s.mu.RLock()
	snap := &Snapshot{
		RoundID:    r.id,
		Phase:      r.phase,
		Commitment: r.commitment,
		Multiplier: 1.0,
	}
	if r.phase == PhaseCountdown {
		snap.StartsInMs = time.Until(r.betsOpen).Milliseconds()
	}
	if r.phase == PhaseCrashed {
		snap.CrashPoint = r.point
		snap.ServerSeed = r.seed
	}
	s.mu.RUnlock()
	if snap.Phase == PhaseFlying {
		snap.Multiplier = s.multiplierNow(r)
	}

	stakes, err := s.stakes.ForRound(snap.RoundID, subjectID)
	if err != nil {
		return nil, nil, err
	}
	return snap, stakes, nil
}

// Bet locks a stake into the current round. Only accepted during countdown;
// the unique (round, subject, slot) key rejects double-booking a slot.
func (s *Service) Bet(ctx context.Context, subjectID string, slot int, bet int64) (*models.CrashStake, error) {
	if slot < 0 || slot >= maxSlots {
		return nil, game.ErrValidation
	}
	if bet < s.cfg.MinBet || bet > s.cfg.MaxBet {
		return nil, game.ErrValidation
	}
	r := s.current()
	if r == nil {
		return nil, game.ErrStateConflict
	}
	s.mu.RLock()
	phase, roundID := r.phase, r.id
	s.mu.RUnlock()
	if phase != PhaseCountdown {
		return nil, game.ErrStateConflict
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := ledger.Debit(tx, subjectID, bet); err != nil {
		return nil, err
	}
	st := &models.CrashStake{RoundID: roundID, SubjectID: subjectID, Slot: slot, Bet: bet}
	if err := s.stakes.Create(tx, st); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Printf("[CRASH] Bet: round=%s subject=%s slot=%d bet=%d", roundID, subjectID, slot, bet)
	return st, nil
}

// Cashout settles one stake at the multiplier read at the moment of the call.
// Rejected unless the round is still flying; the cashed_out row guard makes a
// duplicate request a conflict, never a second credit.
func (s *Service) Cashout(ctx context.Context, subjectID string, slot int) (*models.CrashStake, error) {
	r := s.current()
	if r == nil {
		return nil, game.ErrStateConflict
	}
	s.mu.RLock()
	phase, roundID := r.phase, r.id
	s.mu.RUnlock()
	if phase != PhaseFlying {
		return nil, game.ErrStateConflict
	}
	mult := s.multiplierNow(r)
	if mult >= r.point {
		// The crash already happened even if the phase flip has not landed.
		return nil, game.ErrStateConflict
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	st, err := s.stakes.LockLiveStake(tx, roundID, subjectID, slot)
	if err != nil {
		return nil, err
	}
	payout := int64(math.Floor(float64(st.Bet) * mult))
	if err := s.stakes.MarkCashedOut(tx, st.ID, mult, payout); err != nil {
		return nil, err
	}
	if err := ledger.Credit(tx, subjectID, payout); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	st.CashedOut = true
	st.Payout = payout
	log.Printf("[CRASH] Cashout: round=%s subject=%s slot=%d mult=%.2f payout=%d",
		roundID, subjectID, slot, mult, payout)
	return st, nil
}

// VerifyResult lets clients check a finished round's fairness trail: the
// revealed seed must hash to the pre-published commitment and re-derive the
// crash point.
type VerifyResult struct {
	RoundID         string  `json:"round_id"`
	Commitment      string  `json:"commitment"`
	ServerSeed      string  `json:"server_seed"`
	CrashPoint      float64 `json:"crash_point"`
	DerivedHash     string  `json:"derived_hash"`
	DerivedPoint    float64 `json:"derived_point"`
	CommitmentValid bool    `json:"commitment_valid"`
}

func (s *Service) Verify(ctx context.Context, roundID string) (*VerifyResult, error) {
	rec, err := s.rounds.Get(roundID)
	if err != nil {
		return nil, err
	}
	if rec.ServerSeed == "" {
		// Still in play; revealing now would leak the outcome.
		return nil, game.ErrStateConflict
	}
	res := &VerifyResult{
		RoundID:      rec.ID,
		Commitment:   rec.Commitment,
		ServerSeed:   rec.ServerSeed,
		DerivedHash:  fair.Commitment(rec.ServerSeed),
		DerivedPoint: fair.CrashPoint(rec.ServerSeed, s.cfg.CrashEdge),
	}
	if rec.CrashPoint.Valid {
		res.CrashPoint = rec.CrashPoint.Float64
	}
	res.CommitmentValid = res.DerivedHash == rec.Commitment
	return res, nil
}
