package reaper

import (
	"context"
	"log"
	"time"

	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/rooms"
	"github.com/playmatrix/backend/internal/sessions"
)

// Reaper is the background sweep that keeps abandoned play from holding money
// forever: stale sessions are force-resolved, unattended rooms are settled or
// forfeited, and terminal records past retention are deleted.
type Reaper struct {
	sessions *sessions.Service
	rooms    *rooms.Service
	cfg      *config.Config
}

func New(sess *sessions.Service, rm *rooms.Service, cfg *config.Config) *Reaper {
	return &Reaper{sessions: sess, rooms: rm, cfg: cfg}
}

// Run sweeps on a fixed interval until ctx is cancelled. Call in a goroutine
// from main.
func (r *Reaper) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.ReaperPollSeconds) * time.Second
	log.Printf("[REAPER] Started: poll=%s session_stale=%dm heartbeat_stale=%ds retain=%ds",
		interval, r.cfg.SessionStaleMinutes, r.cfg.HeartbeatStaleSeconds, r.cfg.FinishedRetainSeconds)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	r.sweepStaleSessions(ctx)
	r.sweepRooms(ctx)
	r.sweepFinished(ctx)
}

// sweepStaleSessions force-resolves live sessions with no action past the
// staleness cutoff. The stake is settled on current state, never dropped.
func (r *Reaper) sweepStaleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(r.cfg.SessionStaleMinutes) * time.Minute)
	stale, err := r.sessions.Sessions().StaleLive(cutoff)
	if err != nil {
		log.Printf("[REAPER] Stale session scan failed: %v", err)
		return
	}
	for i := range stale {
		sess := &stale[i]
		err := r.sessions.ForceResolve(ctx, sess.ID, sess.SubjectID, game.Kind(sess.GameKind))
		if err == game.ErrStateConflict || err == game.ErrNotFound {
			continue // settled or superseded since the scan
		}
		if err != nil {
			log.Printf("[REAPER] Force-resolve failed: session=%d err=%v", sess.ID, err)
			continue
		}
		log.Printf("[REAPER] Force-resolved stale session: id=%d subject=%s kind=%s",
			sess.ID, sess.SubjectID, sess.GameKind)
	}
}

// sweepRooms settles playing rooms past their deadline, forfeits rooms whose
// participants stopped heartbeating, and refunds waiting rooms whose creator
// vanished before anyone joined.
func (r *Reaper) sweepRooms(ctx context.Context) {
	active, err := r.rooms.Rooms().ListActive()
	if err != nil {
		log.Printf("[REAPER] Room scan failed: %v", err)
		return
	}
	staleBefore := time.Now().Add(-time.Duration(r.cfg.HeartbeatStaleSeconds) * time.Second)
	grace := time.Duration(r.cfg.ConquestGraceSeconds) * time.Second
	for i := range active {
		room := &active[i]

		switch room.Status {
		case game.RoomWaiting:
			if err := r.rooms.ReapStaleWaiting(ctx, room.ID, staleBefore); err != nil && err != game.ErrNotFound {
				log.Printf("[REAPER] Waiting room reap failed: room=%s err=%v", room.ID, err)
			}

		case game.RoomPlaying:
			if room.Deadline.Valid && time.Now().After(room.Deadline.Time.Add(grace)) {
				if _, err := r.rooms.SettleExpired(ctx, "", room.ID); err != nil && err != game.ErrNotFound {
					log.Printf("[REAPER] Deadline settle failed: room=%s err=%v", room.ID, err)
				}
				continue
			}
			if err := r.rooms.TerminateAbandoned(ctx, room.ID, staleBefore); err != nil && err != game.ErrNotFound {
				log.Printf("[REAPER] Abandonment sweep failed: room=%s err=%v", room.ID, err)
			}
		}
	}
}

// sweepFinished deletes terminal records past the read-back retention window.
func (r *Reaper) sweepFinished(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(r.cfg.FinishedRetainSeconds) * time.Second)

	done, err := r.sessions.Sessions().FinishedBefore(cutoff)
	if err != nil {
		log.Printf("[REAPER] Finished session scan failed: %v", err)
	} else {
		for i := range done {
			if err := r.sessions.DeleteFinished(ctx, &done[i]); err != nil {
				log.Printf("[REAPER] Session delete failed: id=%d err=%v", done[i].ID, err)
			}
		}
	}

	terminal, err := r.rooms.Rooms().TerminalBefore(cutoff)
	if err != nil {
		log.Printf("[REAPER] Terminal room scan failed: %v", err)
		return
	}
	for i := range terminal {
		if err := r.rooms.DeleteTerminal(ctx, terminal[i].ID); err != nil {
			log.Printf("[REAPER] Room delete failed: id=%s err=%v", terminal[i].ID, err)
		}
	}
}
