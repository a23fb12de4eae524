package rooms

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/ledger"
	"github.com/playmatrix/backend/internal/models"
	"github.com/playmatrix/backend/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// View is the per-role projection of a room returned to clients. Game is nil
// in lobby listings.
type View struct {
	ID          string        `json:"id"`
	GameKind    string        `json:"game_kind"`
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	Bet         int64         `json:"bet"`
	HasPassword bool          `json:"has_password"`
	P1Name      string        `json:"p1_name"`
	P2Name      string        `json:"p2_name,omitempty"`
	Role        string        `json:"role,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Outcome     *game.Outcome `json:"outcome,omitempty"`
	Game        interface{}   `json:"game,omitempty"`
}

// Service owns the two-party room lifecycle: create/join with entry stakes
// locked up front, turn-gated play, and settlement exactly once whether the
// room ends by play, by deadline or by abandonment.
type Service struct {
	db      *sqlx.DB
	rooms   *store.Rooms
	engines map[game.Kind]game.RoomEngine
	cfg     *config.Config
}

func New(db *sqlx.DB, cfg *config.Config) *Service {
	s := &Service{
		db:      db,
		rooms:   store.NewRooms(db),
		engines: make(map[game.Kind]game.RoomEngine),
		cfg:     cfg,
	}
	s.register(&game.ConquestEngine{GridSize: cfg.ConquestGridSize})
	s.register(&game.PistiEngine{})
	return s
}

func (s *Service) register(e game.RoomEngine) {
	s.engines[e.Kind()] = e
}

func (s *Service) engine(kind game.Kind) (game.RoomEngine, error) {
	e, ok := s.engines[kind]
	if !ok {
		return nil, game.ErrNotFound
	}
	return e, nil
}

// Rooms exposes the repository for the reaper's sweeps.
func (s *Service) Rooms() *store.Rooms { return s.rooms }

func newRoomID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("room id entropy: %v", err))
	}
	return hex.EncodeToString(b)
}

// entryStake is what a participant locks on entry. Conquest charges the fixed
// entry fee; pisti plays for the room's stake.
func (s *Service) entryStake(room *models.Room) int64 {
	if room.GameKind == string(game.KindConquest) {
		return s.cfg.ConquestEntryFee
	}
	return room.Bet
}

// winAmount is the winner's credit: the conquest prize, or the whole pisti pot.
func (s *Service) winAmount(room *models.Room) int64 {
	if room.GameKind == string(game.KindConquest) {
		return s.cfg.ConquestPrize
	}
	return room.Bet * 2
}

// Create opens a waiting room and locks the creator's entry stake.
func (s *Service) Create(ctx context.Context, subjectID, displayName string, kind game.Kind, name, password string, bet int64) (*View, error) {
	if _, err := s.engine(kind); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = displayName + "'s room"
	}
	if len(name) > 64 {
		return nil, game.ErrValidation
	}

	if kind == game.KindConquest {
		bet = s.cfg.ConquestEntryFee
	} else if bet < s.cfg.MinBet || bet > s.cfg.MaxBet {
		return nil, game.ErrValidation
	}

	room := &models.Room{
		ID:          newRoomID(),
		GameKind:    string(kind),
		Name:        name,
		Status:      game.RoomWaiting,
		Bet:         bet,
		HasPassword: password != "",
		P1Subject:   sql.NullString{String: subjectID, Valid: true},
		P1Name:      displayName,
		Payload:     json.RawMessage(`{}`),
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := ledger.Debit(tx, subjectID, s.entryStake(room)); err != nil {
		return nil, err
	}
	if err := s.rooms.Create(tx, room); err != nil {
		return nil, err
	}
	if password != "" {
		hash, herr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if herr != nil {
			return nil, herr
		}
		if err := s.rooms.SetPassword(tx, room.ID, string(hash)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ROOM] Created: id=%s kind=%s subject=%s stake=%d", room.ID, kind, subjectID, s.entryStake(room))
	return s.view(room, "p1")
}

// Join seats the second participant, locks their stake and starts play. For
// conquest that also arms the round deadline.
func (s *Service) Join(ctx context.Context, subjectID, displayName, roomID, password string) (*View, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return nil, err
	}
	e, err := s.engine(game.Kind(room.GameKind))
	if err != nil {
		return nil, err
	}
	if room.Status != game.RoomWaiting {
		return nil, game.ErrStateConflict
	}
	if room.RoleOf(subjectID) != "" {
		return nil, game.ErrStateConflict
	}
	if room.HasPassword {
		hash, herr := s.rooms.PasswordHash(roomID)
		if herr != nil {
			return nil, herr
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return nil, game.ErrValidation
		}
	}

	if err := ledger.Debit(tx, subjectID, s.entryStake(room)); err != nil {
		return nil, err
	}

	payload, err := e.Init()
	if err != nil {
		return nil, err
	}
	if room.Payload, err = json.Marshal(payload); err != nil {
		return nil, err
	}
	room.P2Subject = sql.NullString{String: subjectID, Valid: true}
	room.P2Name = displayName
	room.P2SeenAt = sql.NullTime{Time: time.Now(), Valid: true}
	room.Status = game.RoomPlaying
	if room.GameKind == string(game.KindConquest) {
		room.Deadline = sql.NullTime{
			Time:  time.Now().Add(time.Duration(s.cfg.ConquestWindowSeconds) * time.Second),
			Valid: true,
		}
	}

	if err := s.rooms.Save(tx, room); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ROOM] Joined: id=%s subject=%s", room.ID, subjectID)
	return s.view(room, "p2")
}

// Leave is a refund while waiting and a forfeit while playing. A forfeited
// room settles immediately for the remaining participant.
func (s *Service) Leave(ctx context.Context, subjectID, roomID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return err
	}
	role := room.RoleOf(subjectID)
	if role == "" {
		return game.ErrNotFound
	}

	switch room.Status {
	case game.RoomWaiting:
		if err := ledger.Credit(tx, subjectID, s.entryStake(room)); err != nil {
			return err
		}
		if err := s.rooms.Delete(tx, roomID); err != nil {
			return err
		}
		log.Printf("[ROOM] Dissolved: id=%s subject=%s refunded", roomID, subjectID)

	case game.RoomPlaying:
		winner := "p1"
		if role == "p1" {
			winner = "p2"
		}
		if err := s.settleForfeit(tx, room, winner); err != nil {
			return err
		}
		log.Printf("[ROOM] Forfeited: id=%s leaver=%s winner=%s", roomID, role, winner)

	default:
		return game.ErrStateConflict
	}

	return tx.Commit()
}

// Heartbeat refreshes the participant's liveness stamp and settles on read:
// an expired conquest round resolves on the board, a stale opponent forfeits
// to the caller. Neither waits for the background sweep.
func (s *Service) Heartbeat(ctx context.Context, subjectID, roomID string) (*View, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return nil, err
	}
	role := room.RoleOf(subjectID)
	if role == "" {
		return nil, game.ErrNotFound
	}

	now := sql.NullTime{Time: time.Now(), Valid: true}
	if role == "p1" {
		room.P1SeenAt = now
	} else {
		room.P2SeenAt = now
	}

	if room.Status == game.RoomPlaying {
		if s.deadlinePassed(room) {
			e, eerr := s.engine(game.Kind(room.GameKind))
			if eerr != nil {
				return nil, eerr
			}
			if err := s.settlePlayed(tx, e, room); err != nil {
				return nil, err
			}
		} else {
			p1Stale, p2Stale := staleSides(room, s.staleCutoff())
			if (role == "p1" && p2Stale) || (role == "p2" && p1Stale) {
				// settleForfeit saves the room itself.
				if err := s.settleForfeit(tx, room, role); err != nil {
					return nil, err
				}
				if err := tx.Commit(); err != nil {
					return nil, err
				}
				log.Printf("[ROOM] Forfeited on heartbeat: id=%s winner=%s", roomID, role)
				return s.view(room, role)
			}
		}
	}

	if err := s.rooms.Save(tx, room); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.view(room, role)
}

// Act applies one move by a seated participant. Past the deadline (plus a
// small grace for in-flight requests) the move is refused and the room is
// settled instead.
func (s *Service) Act(ctx context.Context, subjectID, roomID string, act game.Action) (*View, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return nil, err
	}
	e, err := s.engine(game.Kind(room.GameKind))
	if err != nil {
		return nil, err
	}
	role := room.RoleOf(subjectID)
	if role == "" {
		return nil, game.ErrNotFound
	}
	if room.Status != game.RoomPlaying {
		return nil, game.ErrStateConflict
	}
	if s.deadlinePassed(room) {
		if err := s.settlePlayed(tx, e, room); err != nil {
			return nil, err
		}
		if err := s.rooms.Save(tx, room); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, game.ErrStateConflict
	}

	updated, finished, err := e.Apply(room.Payload, role, act)
	if err != nil {
		return nil, err
	}
	if room.Payload, err = json.Marshal(updated); err != nil {
		return nil, err
	}
	if role == "p1" {
		room.P1SeenAt = sql.NullTime{Time: time.Now(), Valid: true}
	} else {
		room.P2SeenAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	if finished {
		if err := s.settlePlayed(tx, e, room); err != nil {
			return nil, err
		}
	}
	if err := s.rooms.Save(tx, room); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.view(room, role)
}

// State returns the caller's view of the room, settling an expired conquest
// round on the way when needed.
func (s *Service) State(ctx context.Context, subjectID, roomID string) (*View, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == game.RoomPlaying && s.deadlinePassed(room) {
		return s.SettleExpired(ctx, subjectID, roomID)
	}
	return s.view(room, room.RoleOf(subjectID))
}

// SettleExpired settles a playing room whose deadline has passed, then
// returns the caller's view. Safe to call on any room; a room that is not
// past-deadline is returned untouched.
func (s *Service) SettleExpired(ctx context.Context, subjectID, roomID string) (*View, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == game.RoomPlaying && s.deadlinePassed(room) {
		e, eerr := s.engine(game.Kind(room.GameKind))
		if eerr != nil {
			return nil, eerr
		}
		if err := s.settlePlayed(tx, e, room); err != nil {
			return nil, err
		}
		if err := s.rooms.Save(tx, room); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.view(room, room.RoleOf(subjectID))
}

// ListOpen returns lobby projections for a kind. Board payloads are omitted.
func (s *Service) ListOpen(ctx context.Context, kind game.Kind) ([]View, error) {
	rooms, err := s.rooms.ListOpen(string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rooms))
	for i := range rooms {
		out = append(out, View{
			ID:          rooms[i].ID,
			GameKind:    rooms[i].GameKind,
			Name:        rooms[i].Name,
			Status:      rooms[i].Status,
			Bet:         rooms[i].Bet,
			HasPassword: rooms[i].HasPassword,
			P1Name:      rooms[i].P1Name,
			P2Name:      rooms[i].P2Name,
		})
	}
	return out, nil
}

// TerminateAbandoned forfeits a playing room whose participant stopped
// heartbeating, awarding the live side. Reaper path.
func (s *Service) TerminateAbandoned(ctx context.Context, roomID string, staleBefore time.Time) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return err
	}
	if room.Status != game.RoomPlaying {
		return nil
	}

	p1Stale, p2Stale := staleSides(room, staleBefore)
	switch {
	case p1Stale && p2Stale:
		// Both gone: treat as a draw so neither stake is silently lost.
		if err := s.settleDrawTerminated(tx, room); err != nil {
			return err
		}
	case p1Stale:
		if err := s.settleForfeit(tx, room, "p2"); err != nil {
			return err
		}
	case p2Stale:
		if err := s.settleForfeit(tx, room, "p1"); err != nil {
			return err
		}
	default:
		return nil
	}
	log.Printf("[ROOM] Terminated: id=%s p1_stale=%v p2_stale=%v", roomID, p1Stale, p2Stale)
	return tx.Commit()
}

// ReapStaleWaiting refunds and deletes a waiting room whose creator stopped
// heartbeating without leaving, so the locked entry stake cannot leak. Reaper
// path; a room that got joined or touched since the scan is left alone.
func (s *Service) ReapStaleWaiting(ctx context.Context, roomID string, staleBefore time.Time) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	room, err := s.rooms.Lock(tx, roomID)
	if err != nil {
		return err
	}
	if room.Status != game.RoomWaiting {
		return nil
	}
	p1Stale, _ := staleSides(room, staleBefore)
	if !p1Stale {
		return nil
	}

	if subj, okc := subjectOf(room, "p1"); okc {
		if err := ledger.Credit(tx, subj, s.entryStake(room)); err != nil {
			return err
		}
	}
	if err := s.rooms.Delete(tx, roomID); err != nil {
		return err
	}
	log.Printf("[ROOM] Reaped stale waiting room: id=%s refunded", roomID)
	return tx.Commit()
}

// DeleteTerminal removes a finished/terminated room past retention.
func (s *Service) DeleteTerminal(ctx context.Context, roomID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.rooms.Delete(tx, roomID); err != nil {
		return err
	}
	return tx.Commit()
}

// deadlinePassed includes the grace window on every path, so the admission
// check in Act and the settle-on-read checks can never disagree about whether
// a last in-flight claim still counts.
func (s *Service) deadlinePassed(room *models.Room) bool {
	if !room.Deadline.Valid {
		return false
	}
	grace := time.Duration(s.cfg.ConquestGraceSeconds) * time.Second
	return time.Now().After(room.Deadline.Time.Add(grace))
}

// staleSides reports which seats have missed the liveness window.
func staleSides(room *models.Room, cutoff time.Time) (p1, p2 bool) {
	p1 = room.P1SeenAt.Valid && room.P1SeenAt.Time.Before(cutoff)
	p2 = room.P2SeenAt.Valid && room.P2SeenAt.Time.Before(cutoff)
	return p1, p2
}

func (s *Service) staleCutoff() time.Time {
	return time.Now().Add(-time.Duration(s.cfg.HeartbeatStaleSeconds) * time.Second)
}

func subjectOf(room *models.Room, role string) (string, bool) {
	switch role {
	case "p1":
		if room.P1Subject.Valid {
			return room.P1Subject.String, true
		}
	case "p2":
		if room.P2Subject.Valid {
			return room.P2Subject.String, true
		}
	}
	return "", false
}

// settlePlayed resolves the board and pays out: winner takes the win amount,
// a draw refunds both entry stakes. The settled flag makes repeats no-ops.
func (s *Service) settlePlayed(tx *sqlx.Tx, e game.RoomEngine, room *models.Room) error {
	if room.Settled {
		return nil
	}

	outcome, final, err := e.Resolve(room.Payload)
	if err != nil {
		return err
	}
	if room.Payload, err = json.Marshal(final); err != nil {
		return err
	}

	if outcome.Draw {
		refund := s.entryStake(room)
		for _, role := range []string{"p1", "p2"} {
			if subj, ok := subjectOf(room, role); ok {
				if err := ledger.Credit(tx, subj, refund); err != nil {
					return err
				}
			}
		}
	} else if subj, ok := subjectOf(room, outcome.Winner); ok {
		if err := ledger.Credit(tx, subj, s.winAmount(room)); err != nil {
			return err
		}
	}

	room.Status = game.RoomFinished
	room.Settled = true
	log.Printf("[ROOM] Settled: id=%s winner=%q draw=%v", room.ID, outcome.Winner, outcome.Draw)
	return nil
}

// settleForfeit pays the surviving role the win amount and terminates the
// room. The forfeiting side's seat is vacated so the terminated view names
// the winner; their stake stays in the pot.
func (s *Service) settleForfeit(tx *sqlx.Tx, room *models.Room, winner string) error {
	if room.Settled {
		return nil
	}
	if subj, ok := subjectOf(room, winner); ok {
		if err := ledger.Credit(tx, subj, s.winAmount(room)); err != nil {
			return err
		}
	}
	if winner == "p1" {
		room.P2Subject = sql.NullString{}
	} else {
		room.P1Subject = sql.NullString{}
	}
	room.Status = game.RoomTerminated
	room.Settled = true
	return s.rooms.Save(tx, room)
}

func (s *Service) settleDrawTerminated(tx *sqlx.Tx, room *models.Room) error {
	if room.Settled {
		return nil
	}
	refund := s.entryStake(room)
	for _, role := range []string{"p1", "p2"} {
		if subj, ok := subjectOf(room, role); ok {
			if err := ledger.Credit(tx, subj, refund); err != nil {
				return err
			}
		}
	}
	room.Status = game.RoomTerminated
	room.Settled = true
	return s.rooms.Save(tx, room)
}

func (s *Service) view(room *models.Room, role string) (*View, error) {
	v := &View{
		ID:          room.ID,
		GameKind:    room.GameKind,
		Name:        room.Name,
		Status:      room.Status,
		Bet:         room.Bet,
		HasPassword: room.HasPassword,
		P1Name:      room.P1Name,
		P2Name:      room.P2Name,
		Role:        role,
	}
	if room.Deadline.Valid {
		d := room.Deadline.Time
		v.Deadline = &d
	}

	if len(room.Payload) > 2 { // beyond the "{}" placeholder of a waiting room
		e, err := s.engine(game.Kind(room.GameKind))
		if err != nil {
			return nil, err
		}
		proj, err := e.Project(room.Payload, role, room.Status)
		if err != nil {
			return nil, err
		}
		v.Game = proj
		if room.Status == game.RoomFinished {
			outcome, _, rerr := e.Resolve(room.Payload)
			if rerr == nil {
				v.Outcome = &outcome
			}
		}
	}
	if room.Status == game.RoomTerminated {
		// Forfeit: the remaining subject is the winner; a double-stale
		// termination has no winner.
		out := &game.Outcome{}
		switch {
		case room.P1Subject.Valid && !room.P2Subject.Valid:
			out.Winner = "p1"
		case room.P2Subject.Valid && !room.P1Subject.Valid:
			out.Winner = "p2"
		default:
			out.Draw = true
		}
		v.Outcome = out
	}
	return v, nil
}
