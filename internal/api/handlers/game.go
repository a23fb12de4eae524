package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/guard"
	"github.com/playmatrix/backend/internal/sessions"
)

// StartGame opens a session for a single-subject kind, locking the stake.
func StartGame(svc *sessions.Service, g *guard.Guard, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Bet    int64           `json:"bet"`
			Params json.RawMessage `json:"params"`
		}
		if err := c.BindJSON(&req); err != nil {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, kind); err != nil {
			fail(c, err)
			return
		}
		view, err := svc.Start(c.Request.Context(), subject, kind, req.Bet, req.Params)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"session": view})
	}
}

// GameAction applies one sequenced move to the live session.
func GameAction(svc *sessions.Service, g *guard.Guard, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Seq    int64           `json:"seq"`
			Name   string          `json:"name"`
			Params json.RawMessage `json:"params"`
		}
		if err := c.BindJSON(&req); err != nil {
			fail(c, game.ErrValidation)
			return
		}
		if req.Name == "" {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, kind); err != nil {
			fail(c, err)
			return
		}
		view, err := svc.Action(c.Request.Context(), subject, kind, req.Seq, game.Action{Name: req.Name, Params: req.Params})
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"session": view})
	}
}

// GameCashout voluntarily resolves the live session (mines). Idempotent on a
// session that already finished.
func GameCashout(svc *sessions.Service, g *guard.Guard, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, kind); err != nil {
			fail(c, err)
			return
		}
		view, err := svc.Cashout(c.Request.Context(), subject, kind)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"session": view})
	}
}

// GameState returns the subject's latest session view for the kind.
func GameState(svc *sessions.Service, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.State(c.Request.Context(), subjectID(c), kind)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"session": view})
	}
}
