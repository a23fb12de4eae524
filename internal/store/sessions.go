package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/models"
)

const sessionCols = `id, subject_id, game_kind, state, bet, payload, seq, settled, version, created_at, updated_at, last_action_at`

// Sessions is the repository for single-subject game sessions. Records are
// versioned: every write is a compare-and-swap on the version column, so a
// lost race surfaces as ErrStateConflict instead of a silent overwrite.
type Sessions struct {
	db *sqlx.DB
}

func NewSessions(db *sqlx.DB) *Sessions {
	return &Sessions{db: db}
}

// isUniqueViolation reports a Postgres duplicate-key error, which here means
// a live session already exists for the (subject, kind) pair.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// Create inserts a new PLAYING session. The partial unique index enforces the
// one-live-session invariant.
func (s *Sessions) Create(tx *sqlx.Tx, sess *models.Session) error {
	err := tx.QueryRowx(`INSERT INTO game_sessions (subject_id, game_kind, state, bet, payload, seq, created_at, updated_at, last_action_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW(), NOW()) RETURNING id, version`,
		sess.SubjectID, sess.GameKind, sess.State, sess.Bet, sess.Payload).Scan(&sess.ID, &sess.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return game.ErrStateConflict
		}
		return err
	}
	return nil
}

// Live returns the subject's live (non-finished) session for a kind.
func (s *Sessions) Live(subjectID, kind string) (*models.Session, error) {
	var sess models.Session
	err := s.db.Get(&sess, `SELECT `+sessionCols+` FROM game_sessions
		WHERE subject_id=$1 AND game_kind=$2 AND state IN ('PLAYING','RESOLVING')`, subjectID, kind)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Latest returns the subject's most recent session for a kind, live or
// finished, for client read-back.
func (s *Sessions) Latest(subjectID, kind string) (*models.Session, error) {
	var sess models.Session
	err := s.db.Get(&sess, `SELECT `+sessionCols+` FROM game_sessions
		WHERE subject_id=$1 AND game_kind=$2 ORDER BY created_at DESC LIMIT 1`, subjectID, kind)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// LockLive loads the live session inside tx with a row lock.
func (s *Sessions) LockLive(tx *sqlx.Tx, subjectID, kind string) (*models.Session, error) {
	var sess models.Session
	err := tx.Get(&sess, `SELECT `+sessionCols+` FROM game_sessions
		WHERE subject_id=$1 AND game_kind=$2 AND state IN ('PLAYING','RESOLVING') FOR UPDATE`, subjectID, kind)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save writes back a mutated session with a version check. The seq column is
// taken from the struct, so callers bump it before saving an accepted action.
func (s *Sessions) Save(tx *sqlx.Tx, sess *models.Session) error {
	res, err := tx.Exec(`UPDATE game_sessions
		SET state=$1, bet=$2, payload=$3, seq=$4, settled=$5, version=version+1, updated_at=NOW(), last_action_at=NOW()
		WHERE id=$6 AND version=$7`,
		sess.State, sess.Bet, sess.Payload, sess.Seq, sess.Settled, sess.ID, sess.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrStateConflict
	}
	sess.Version++
	return nil
}

// Delete removes a session row (post-settlement reaping).
func (s *Sessions) Delete(tx *sqlx.Tx, id int64) error {
	_, err := tx.Exec(`DELETE FROM game_sessions WHERE id=$1`, id)
	return err
}

// StaleLive lists live sessions with no action since the cutoff.
func (s *Sessions) StaleLive(cutoff time.Time) ([]models.Session, error) {
	var out []models.Session
	err := s.db.Select(&out, `SELECT `+sessionCols+` FROM game_sessions
		WHERE state IN ('PLAYING','RESOLVING') AND last_action_at < $1`, cutoff)
	return out, err
}

// FinishedBefore lists finished sessions older than the cutoff, past their
// read-back retention.
func (s *Sessions) FinishedBefore(cutoff time.Time) ([]models.Session, error) {
	var out []models.Session
	err := s.db.Select(&out, `SELECT `+sessionCols+` FROM game_sessions
		WHERE state='FINISHED' AND updated_at < $1`, cutoff)
	return out, err
}
