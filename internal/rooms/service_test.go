package rooms

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/models"
)

var roomColumns = []string{
	"id", "game_kind", "name", "status", "bet", "has_password",
	"p1_subject", "p1_name", "p1_seen_at", "p2_subject", "p2_name", "p2_seen_at",
	"payload", "deadline", "settled", "version", "created_at", "updated_at",
}

func newMockRoomService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	cfg := &config.Config{
		MinBet:                100,
		MaxBet:                1000000,
		ConquestGridSize:      6,
		ConquestEntryFee:      500,
		ConquestPrize:         900,
		ConquestWindowSeconds: 60,
		ConquestGraceSeconds:  3,
		HeartbeatStaleSeconds: 30,
	}
	return New(sqlx.NewDb(mockDB, "sqlmock"), cfg), mock
}

// A heartbeat from the live side of a room whose opponent missed the liveness
// window settles the forfeit right there: winner credited, room terminated.
func TestHeartbeatForfeitsStaleOpponent(t *testing.T) {
	svc, mock := newMockRoomService(t)

	now := time.Now()
	row := sqlmock.NewRows(roomColumns).
		AddRow("ab12cd34ef56", "pisti", "high stakes", game.RoomPlaying, int64(1000), false,
			"sub_a", "Alice", now, "sub_b", "Bob", now.Add(-2*time.Minute),
			[]byte(`{}`), nil, false, int64(1), now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM rooms WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(row)
	mock.ExpectExec(`UPDATE accounts SET balance = balance \+`).
		WithArgs(int64(2000), "sub_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE rooms`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	view, err := svc.Heartbeat(context.Background(), "sub_a", "ab12cd34ef56")
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if view.Status != game.RoomTerminated {
		t.Errorf("status = %s, want terminated", view.Status)
	}
	if view.Outcome == nil || view.Outcome.Winner != "p1" {
		t.Errorf("outcome = %+v, want winner p1", view.Outcome)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A heartbeat while the opponent is still inside the liveness window just
// refreshes the caller's stamp.
func TestHeartbeatKeepsLiveRoomPlaying(t *testing.T) {
	svc, mock := newMockRoomService(t)

	now := time.Now()
	row := sqlmock.NewRows(roomColumns).
		AddRow("ab12cd34ef56", "pisti", "high stakes", game.RoomPlaying, int64(1000), false,
			"sub_a", "Alice", now, "sub_b", "Bob", now.Add(-5*time.Second),
			[]byte(`{}`), nil, false, int64(1), now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM rooms WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(row)
	mock.ExpectExec(`UPDATE rooms`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	view, err := svc.Heartbeat(context.Background(), "sub_a", "ab12cd34ef56")
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if view.Status != game.RoomPlaying {
		t.Errorf("status = %s, want playing", view.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A waiting room whose creator stopped heartbeating is dissolved with a
// refund, so the locked entry stake cannot leak.
func TestReapStaleWaitingRefundsCreator(t *testing.T) {
	svc, mock := newMockRoomService(t)

	now := time.Now()
	row := sqlmock.NewRows(roomColumns).
		AddRow("ab12cd34ef56", "conquest", "Alice's room", game.RoomWaiting, int64(500), false,
			"sub_a", "Alice", now.Add(-2*time.Minute), nil, "", nil,
			[]byte(`{}`), nil, false, int64(1), now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM rooms WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(row)
	mock.ExpectExec(`UPDATE accounts SET balance = balance \+`).
		WithArgs(int64(500), "sub_a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM rooms`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	staleBefore := time.Now().Add(-30 * time.Second)
	if err := svc.ReapStaleWaiting(context.Background(), "ab12cd34ef56", staleBefore); err != nil {
		t.Fatalf("ReapStaleWaiting: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A waiting room whose creator is still heartbeating is left alone.
func TestReapStaleWaitingSkipsLiveCreator(t *testing.T) {
	svc, mock := newMockRoomService(t)

	now := time.Now()
	row := sqlmock.NewRows(roomColumns).
		AddRow("ab12cd34ef56", "conquest", "Alice's room", game.RoomWaiting, int64(500), false,
			"sub_a", "Alice", now, nil, "", nil,
			[]byte(`{}`), nil, false, int64(1), now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM rooms WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(row)
	mock.ExpectRollback()

	staleBefore := time.Now().Add(-30 * time.Second)
	if err := svc.ReapStaleWaiting(context.Background(), "ab12cd34ef56", staleBefore); err != nil {
		t.Fatalf("ReapStaleWaiting: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("live creator's room was touched: %v", err)
	}
}

// The grace window applies on settlement exactly as it does on admission: a
// room one second past its deadline is not yet settleable, five seconds past
// it is.
func TestDeadlinePassedHonorsGrace(t *testing.T) {
	svc, _ := newMockRoomService(t)

	cases := []struct {
		name string
		past time.Duration
		want bool
	}{
		{"inside grace", 1 * time.Second, false},
		{"past grace", 5 * time.Second, true},
	}
	for _, tc := range cases {
		room := &models.Room{
			GameKind: string(game.KindConquest),
			Status:   game.RoomPlaying,
			Deadline: sql.NullTime{Time: time.Now().Add(-tc.past), Valid: true},
		}
		if got := svc.deadlinePassed(room); got != tc.want {
			t.Errorf("%s: deadlinePassed = %v, want %v", tc.name, got, tc.want)
		}
	}

	noDeadline := &models.Room{GameKind: string(game.KindPisti), Status: game.RoomPlaying}
	if svc.deadlinePassed(noDeadline) {
		t.Error("room without a deadline reported as expired")
	}
}
