package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/ledger"
	"github.com/playmatrix/backend/internal/models"
	"github.com/playmatrix/backend/internal/store"
)

// View is what handlers return to clients: lifecycle fields plus the engine's
// public projection.
type View struct {
	GameKind string      `json:"game_kind"`
	State    string      `json:"state"`
	Bet      int64       `json:"bet"`
	Seq      int64       `json:"seq"`
	Payout   int64       `json:"payout,omitempty"`
	Game     interface{} `json:"game"`
}

// Service owns the single-subject session lifecycle: bet-lock on start, one
// move per action, and settlement exactly once. Every transition happens in
// one transaction against the store; engines stay pure.
type Service struct {
	db       *sqlx.DB
	sessions *store.Sessions
	engines  map[game.Kind]game.Engine
	cfg      *config.Config
}

func New(db *sqlx.DB, cfg *config.Config) *Service {
	s := &Service{
		db:       db,
		sessions: store.NewSessions(db),
		engines:  make(map[game.Kind]game.Engine),
		cfg:      cfg,
	}
	s.register(&game.BlackjackEngine{Decks: cfg.BlackjackDecks})
	s.register(&game.MinesEngine{Cells: cfg.MinesCells, DefaultMines: cfg.MinesDefault, Edge: cfg.MinesEdge})
	return s
}

func (s *Service) register(e game.Engine) {
	s.engines[e.Kind()] = e
}

func (s *Service) engine(kind game.Kind) (game.Engine, error) {
	e, ok := s.engines[kind]
	if !ok {
		return nil, game.ErrNotFound
	}
	return e, nil
}

func marshalPayload(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

func (s *Service) view(e game.Engine, sess *models.Session, payout int64) (*View, error) {
	proj, err := e.Project(sess.Payload, game.State(sess.State))
	if err != nil {
		return nil, err
	}
	return &View{
		GameKind: sess.GameKind,
		State:    sess.State,
		Bet:      sess.Bet,
		Seq:      sess.Seq,
		Payout:   payout,
		Game:     proj,
	}, nil
}

// Start validates the stake, debits it and creates the PLAYING session in one
// transaction. An existing live session is rejected; resume goes through
// State instead.
func (s *Service) Start(ctx context.Context, subjectID string, kind game.Kind, bet int64, params json.RawMessage) (*View, error) {
	e, err := s.engine(kind)
	if err != nil {
		return nil, err
	}
	if bet < s.cfg.MinBet || bet > s.cfg.MaxBet {
		return nil, game.ErrValidation
	}
	if _, err := s.sessions.Live(subjectID, string(kind)); err == nil {
		return nil, game.ErrStateConflict
	}

	payload, finished, err := e.Start(bet, params)
	if err != nil {
		return nil, err
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := ledger.Debit(tx, subjectID, bet); err != nil {
		return nil, err
	}

	sess := &models.Session{
		SubjectID: subjectID,
		GameKind:  string(kind),
		State:     string(game.StatePlaying),
		Bet:       bet,
		Payload:   raw,
	}
	if err := s.sessions.Create(tx, sess); err != nil {
		return nil, err
	}

	var payout int64
	if finished {
		payout, err = s.settleLocked(tx, e, sess)
		if err != nil {
			return nil, err
		}
		if err := s.sessions.Save(tx, sess); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Printf("[SESSION] Started: subject=%s kind=%s bet=%d finished=%v", subjectID, kind, bet, finished)
	return s.view(e, sess, payout)
}

// Action applies exactly one move. The submitted seq must equal the stored
// counter; anything else is a replay or a lost race and changes nothing.
func (s *Service) Action(ctx context.Context, subjectID string, kind game.Kind, seq int64, act game.Action) (*View, error) {
	e, err := s.engine(kind)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := s.sessions.LockLive(tx, subjectID, string(kind))
	if err != nil {
		return nil, err
	}
	if sess.State != string(game.StatePlaying) {
		return nil, game.ErrStateConflict
	}
	if seq != sess.Seq {
		return nil, game.ErrStateConflict
	}

	updated, res, err := e.Apply(sess.Payload, act)
	if err != nil {
		return nil, err
	}
	if res.ExtraDebit > 0 {
		if err := ledger.Debit(tx, subjectID, res.ExtraDebit); err != nil {
			return nil, err
		}
		sess.Bet += res.ExtraDebit
	}

	if sess.Payload, err = marshalPayload(updated); err != nil {
		return nil, err
	}
	sess.Seq++

	var payout int64
	if res.Finished {
		sess.State = string(game.StateResolving)
		payout, err = s.settleLocked(tx, e, sess)
		if err != nil {
			return nil, err
		}
	}
	if err := s.sessions.Save(tx, sess); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.view(e, sess, payout)
}

// Cashout forces resolution where the kind permits voluntary exit. Once the
// session is already finished it is a read-back no-op.
func (s *Service) Cashout(ctx context.Context, subjectID string, kind game.Kind) (*View, error) {
	e, err := s.engine(kind)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := s.sessions.LockLive(tx, subjectID, string(kind))
	if err == game.ErrNotFound {
		// Idempotent: report the latest finished session if one remains.
		if latest, lerr := s.sessions.Latest(subjectID, string(kind)); lerr == nil && latest.State == string(game.StateFinished) {
			return s.view(e, latest, 0)
		}
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	updated, res, err := e.Apply(sess.Payload, game.Action{Name: "cashout"})
	if err != nil {
		return nil, err
	}
	if !res.Finished {
		return nil, game.ErrStateConflict
	}
	if sess.Payload, err = marshalPayload(updated); err != nil {
		return nil, err
	}
	sess.Seq++
	sess.State = string(game.StateResolving)

	payout, err := s.settleLocked(tx, e, sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(tx, sess); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.view(e, sess, payout)
}

// State returns the public projection of the newest session, live or
// recently finished.
func (s *Service) State(ctx context.Context, subjectID string, kind game.Kind) (*View, error) {
	e, err := s.engine(kind)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Latest(subjectID, string(kind))
	if err != nil {
		return nil, err
	}
	return s.view(e, sess, 0)
}

// ForceResolve is the reaper's path for a stale session: drive the payload
// terminal and settle, under the same guards as a normal action.
func (s *Service) ForceResolve(ctx context.Context, sessionID int64, subjectID string, kind game.Kind) error {
	e, err := s.engine(kind)
	if err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sess, err := s.sessions.LockLive(tx, subjectID, string(kind))
	if err != nil {
		return err
	}
	if sess.ID != sessionID {
		// A newer session took the slot; leave it alone.
		return game.ErrStateConflict
	}

	updated, err := e.ForceFinish(sess.Payload)
	if err != nil {
		return err
	}
	if sess.Payload, err = marshalPayload(updated); err != nil {
		return err
	}
	sess.Seq++
	sess.State = string(game.StateResolving)

	if _, err := s.settleLocked(tx, e, sess); err != nil {
		return err
	}
	if err := s.sessions.Save(tx, sess); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFinished removes a finished session past its read-back retention.
func (s *Service) DeleteFinished(ctx context.Context, sess *models.Session) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.sessions.Delete(tx, sess.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// Sessions exposes the repository for the reaper's sweeps.
func (s *Service) Sessions() *store.Sessions { return s.sessions }

// settleLocked is the RESOLVING -> FINISHED step: compute the payout, credit
// it, flip the settled flag. The flag check makes a duplicate call inside a
// racing transaction a no-op, so the credit fires at most once.
func (s *Service) settleLocked(tx *sqlx.Tx, e game.Engine, sess *models.Session) (int64, error) {
	if sess.Settled {
		return 0, nil
	}

	payout, final, err := e.Resolve(sess.Payload, sess.Bet)
	if err != nil {
		return 0, err
	}
	if payout > 0 {
		if err := ledger.Credit(tx, sess.SubjectID, payout); err != nil {
			return 0, err
		}
	}
	if sess.Payload, err = marshalPayload(final); err != nil {
		return 0, err
	}
	sess.State = string(game.StateFinished)
	sess.Settled = true
	log.Printf("[SESSION] Settled: subject=%s kind=%s bet=%d payout=%d", sess.SubjectID, sess.GameKind, sess.Bet, payout)
	return payout, nil
}
