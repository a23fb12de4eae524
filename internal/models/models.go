package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Account represents a subject's wallet. Balance is in minor units and is
// only ever mutated through the ledger package.
type Account struct {
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	Balance     int64     `db:"balance" json:"balance"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Session is the authoritative record of one in-progress single-subject game.
// Version is the optimistic concurrency token; every committed transition
// bumps it by one.
type Session struct {
	ID           int64           `db:"id" json:"id"`
	SubjectID    string          `db:"subject_id" json:"subject_id"`
	GameKind     string          `db:"game_kind" json:"game_kind"`
	State        string          `db:"state" json:"state"`
	Bet          int64           `db:"bet" json:"bet"`
	Payload      json.RawMessage `db:"payload" json:"-"`
	Seq          int64           `db:"seq" json:"seq"`
	Settled      bool            `db:"settled" json:"settled"`
	Version      int64           `db:"version" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	LastActionAt time.Time       `db:"last_action_at" json:"last_action_at"`
}

// Room is the authoritative record of one two-subject game.
type Room struct {
	ID          string          `db:"id" json:"id"`
	GameKind    string          `db:"game_kind" json:"game_kind"`
	Name        string          `db:"name" json:"name"`
	Status      string          `db:"status" json:"status"`
	Bet         int64           `db:"bet" json:"bet"`
	HasPassword bool            `db:"has_password" json:"has_password"`
	P1Subject   sql.NullString  `db:"p1_subject" json:"-"`
	P1Name      string          `db:"p1_name" json:"p1_name"`
	P1SeenAt    sql.NullTime    `db:"p1_seen_at" json:"-"`
	P2Subject   sql.NullString  `db:"p2_subject" json:"-"`
	P2Name      string          `db:"p2_name" json:"p2_name"`
	P2SeenAt    sql.NullTime    `db:"p2_seen_at" json:"-"`
	Payload     json.RawMessage `db:"payload" json:"-"`
	Deadline    sql.NullTime    `db:"deadline" json:"-"`
	Settled     bool            `db:"settled" json:"settled"`
	Version     int64           `db:"version" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// RoleOf returns "p1"/"p2" for the given subject, or "" if not a participant.
func (r *Room) RoleOf(subject string) string {
	if r.P1Subject.Valid && r.P1Subject.String == subject {
		return "p1"
	}
	if r.P2Subject.Valid && r.P2Subject.String == subject {
		return "p2"
	}
	return ""
}

// CrashStake is one per-subject stake slot within a crash round.
type CrashStake struct {
	ID          int64           `db:"id" json:"id"`
	RoundID     string          `db:"round_id" json:"round_id"`
	SubjectID   string          `db:"subject_id" json:"subject_id"`
	Slot        int             `db:"slot" json:"slot"`
	Bet         int64           `db:"bet" json:"bet"`
	CashedOut   bool            `db:"cashed_out" json:"cashed_out"`
	CashoutMult sql.NullFloat64 `db:"cashout_mult" json:"-"`
	Payout      int64           `db:"payout" json:"payout"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// CrashRound is the persisted fairness record for one crash round. The seed
// and crash point stay empty until the round has crashed.
type CrashRound struct {
	ID         string          `db:"id" json:"id"`
	Commitment string          `db:"commitment" json:"commitment"`
	ServerSeed string          `db:"server_seed" json:"server_seed,omitempty"`
	CrashPoint sql.NullFloat64 `db:"crash_point" json:"-"`
	StartedAt  time.Time       `db:"started_at" json:"started_at"`
	CrashedAt  sql.NullTime    `db:"crashed_at" json:"-"`
}
