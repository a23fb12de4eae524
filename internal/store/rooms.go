package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/models"
)

const roomCols = `id, game_kind, name, status, bet, has_password, p1_subject, p1_name, p1_seen_at, p2_subject, p2_name, p2_seen_at, payload, deadline, settled, version, created_at, updated_at`

// Rooms is the repository for two-party game rooms, with the same versioned
// compare-and-swap discipline as Sessions.
type Rooms struct {
	db *sqlx.DB
}

func NewRooms(db *sqlx.DB) *Rooms {
	return &Rooms{db: db}
}

func (r *Rooms) Create(tx *sqlx.Tx, room *models.Room) error {
	_, err := tx.Exec(`INSERT INTO rooms (id, game_kind, name, status, bet, has_password, p1_subject, p1_name, p1_seen_at, payload, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, $10, NOW(), NOW())`,
		room.ID, room.GameKind, room.Name, room.Status, room.Bet, room.HasPassword,
		room.P1Subject, room.P1Name, room.Payload, room.Deadline)
	return err
}

func (r *Rooms) Get(id string) (*models.Room, error) {
	var room models.Room
	err := r.db.Get(&room, `SELECT `+roomCols+` FROM rooms WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Lock loads a room inside tx with a row lock.
func (r *Rooms) Lock(tx *sqlx.Tx, id string) (*models.Room, error) {
	var room models.Room
	err := tx.Get(&room, `SELECT `+roomCols+` FROM rooms WHERE id=$1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Save writes back a mutated room with a version check.
func (r *Rooms) Save(tx *sqlx.Tx, room *models.Room) error {
	res, err := tx.Exec(`UPDATE rooms
		SET status=$1, p1_subject=$2, p1_name=$3, p1_seen_at=$4, p2_subject=$5, p2_name=$6, p2_seen_at=$7,
		    payload=$8, deadline=$9, settled=$10, version=version+1, updated_at=NOW()
		WHERE id=$11 AND version=$12`,
		room.Status, room.P1Subject, room.P1Name, room.P1SeenAt, room.P2Subject, room.P2Name, room.P2SeenAt,
		room.Payload, room.Deadline, room.Settled, room.ID, room.Version)
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
	room.Version++
	return nil
}

func (r *Rooms) Delete(tx *sqlx.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM rooms WHERE id=$1`, id)
	return err
}

// ListOpen returns lobby projections: waiting and playing rooms of a kind.
func (r *Rooms) ListOpen(kind string) ([]models.Room, error) {
	var out []models.Room
	err := r.db.Select(&out, `SELECT `+roomCols+` FROM rooms
		WHERE game_kind=$1 AND status IN ('waiting','playing') ORDER BY created_at DESC`, kind)
	return out, err
}

// ListActive returns all waiting/playing rooms across kinds, for the reaper.
func (r *Rooms) ListActive() ([]models.Room, error) {
	var out []models.Room
	err := r.db.Select(&out, `SELECT `+roomCols+` FROM rooms WHERE status IN ('waiting','playing')`)
	return out, err
}

// TerminalBefore lists finished/terminated rooms older than the cutoff.
func (r *Rooms) TerminalBefore(cutoff time.Time) ([]models.Room, error) {
	var out []models.Room
	err := r.db.Select(&out, `SELECT `+roomCols+` FROM rooms
		WHERE status IN ('finished','terminated') AND updated_at < $1`, cutoff)
	return out, err
}

// SetPassword stores the bcrypt hash for a room. Kept in its own table so
// lobby listings can never leak it.
func (r *Rooms) SetPassword(tx *sqlx.Tx, roomID, hash string) error {
	_, err := tx.Exec(`INSERT INTO room_passwords (room_id, password_hash, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (room_id) DO UPDATE SET password_hash=EXCLUDED.password_hash`, roomID, hash)
	return err
}

// PasswordHash fetches the stored hash, empty when the room has none.
func (r *Rooms) PasswordHash(roomID string) (string, error) {
	var hash string
	err := r.db.Get(&hash, `SELECT password_hash FROM room_passwords WHERE room_id=$1`, roomID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
