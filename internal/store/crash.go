package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/models"
)

// CrashStakes is the repository for per-subject stake slots within crash
// rounds. Request paths only ever touch their own rows; the round descriptor
// itself is owned by the scheduler actor.
type CrashStakes struct {
	db *sqlx.DB
}

func NewCrashStakes(db *sqlx.DB) *CrashStakes {
	return &CrashStakes{db: db}
}

func (c *CrashStakes) Create(tx *sqlx.Tx, st *models.CrashStake) error {
	err := tx.QueryRowx(`INSERT INTO crash_stakes (round_id, subject_id, slot, bet, created_at)
		VALUES ($1, $2, $3, $4, NOW()) RETURNING id`,
		st.RoundID, st.SubjectID, st.Slot, st.Bet).Scan(&st.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return game.ErrStateConflict
		}
		return err
	}
	return nil
}

// LockLiveStake loads an uncashed stake inside tx with a row lock; the
// cashed_out flag is the at-most-once settlement guard.
func (c *CrashStakes) LockLiveStake(tx *sqlx.Tx, roundID, subjectID string, slot int) (*models.CrashStake, error) {
	var st models.CrashStake
	err := tx.Get(&st, `SELECT id, round_id, subject_id, slot, bet, cashed_out, cashout_mult, payout, created_at
		FROM crash_stakes WHERE round_id=$1 AND subject_id=$2 AND slot=$3 FOR UPDATE`, roundID, subjectID, slot)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if st.CashedOut {
		return nil, game.ErrStateConflict
	}
	return &st, nil
}

// MarkCashedOut records the cashout; the WHERE guard makes duplicates no-ops.
func (c *CrashStakes) MarkCashedOut(tx *sqlx.Tx, id int64, mult float64, payout int64) error {
	res, err := tx.Exec(`UPDATE crash_stakes SET cashed_out=TRUE, cashout_mult=$1, payout=$2
		WHERE id=$3 AND cashed_out=FALSE`, mult, payout, id)
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
	return nil
}

// ForRound lists a subject's stakes in a round.
func (c *CrashStakes) ForRound(roundID, subjectID string) ([]models.CrashStake, error) {
	var out []models.CrashStake
	err := c.db.Select(&out, `SELECT id, round_id, subject_id, slot, bet, cashed_out, cashout_mult, payout, created_at
		FROM crash_stakes WHERE round_id=$1 AND subject_id=$2 ORDER BY slot`, roundID, subjectID)
	return out, err
}

// CrashRounds persists the fairness trail of crash rounds: commitment at
// start, seed and crash point at reveal.
type CrashRounds struct {
	db *sqlx.DB
}

func NewCrashRounds(db *sqlx.DB) *CrashRounds {
	return &CrashRounds{db: db}
}

func (c *CrashRounds) Insert(roundID, commitment string) error {
	_, err := c.db.Exec(`INSERT INTO crash_rounds (id, commitment, started_at) VALUES ($1, $2, NOW())`, roundID, commitment)
	return err
}

func (c *CrashRounds) Reveal(roundID, seed string, crashPoint float64) error {
	_, err := c.db.Exec(`UPDATE crash_rounds SET server_seed=$1, crash_point=$2, crashed_at=NOW() WHERE id=$3`, seed, crashPoint, roundID)
	return err
}

func (c *CrashRounds) Get(roundID string) (*models.CrashRound, error) {
	var r models.CrashRound
	err := c.db.Get(&r, `SELECT id, commitment, server_seed, crash_point, started_at, crashed_at FROM crash_rounds WHERE id=$1`, roundID)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
