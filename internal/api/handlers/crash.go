package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatrix/backend/internal/crash"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/guard"
)

// CrashState returns the current round snapshot plus the caller's stakes.
func CrashState(svc *crash.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, stakes, err := svc.State(c.Request.Context(), subjectID(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"round": snap, "stakes": stakes})
	}
}

// CrashBet locks a stake into the current round during countdown.
func CrashBet(svc *crash.Service, g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Slot int   `json:"slot"`
			Bet  int64 `json:"bet"`
		}
		if err := c.BindJSON(&req); err != nil {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, game.KindCrash); err != nil {
			fail(c, err)
			return
		}
		stake, err := svc.Bet(c.Request.Context(), subject, req.Slot, req.Bet)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"stake": stake})
	}
}

// CrashCashout settles one stake at the multiplier of the moment.
func CrashCashout(svc *crash.Service, g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Slot int `json:"slot"`
		}
		if err := c.BindJSON(&req); err != nil {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, game.KindCrash); err != nil {
			fail(c, err)
			return
		}
		stake, err := svc.Cashout(c.Request.Context(), subject, req.Slot)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"stake": stake})
	}
}

// CrashVerify returns the fairness trail of a finished round.
func CrashVerify(svc *crash.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Verify(c.Request.Context(), c.Param("roundId"))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"verify": res})
	}
}
