package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/guard"
	"github.com/playmatrix/backend/internal/rooms"
)

// CreateRoom opens a waiting room for a two-party kind.
func CreateRoom(svc *rooms.Service, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name"`
			Password string `json:"password"`
			Bet      int64  `json:"bet"`
		}
		if err := c.BindJSON(&req); err != nil {
			fail(c, game.ErrValidation)
			return
		}
		view, err := svc.Create(c.Request.Context(), subjectID(c), displayName(c), kind, req.Name, req.Password, req.Bet)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// JoinRoom seats the caller as the second participant.
func JoinRoom(svc *rooms.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID   string `json:"room_id"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		view, err := svc.Join(c.Request.Context(), subjectID(c), displayName(c), req.RoomID, req.Password)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// LeaveRoom refunds a waiting creator or forfeits a playing participant.
func LeaveRoom(svc *rooms.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID string `json:"room_id"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		if err := svc.Leave(c.Request.Context(), subjectID(c), req.RoomID); err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"left": true})
	}
}

// RoomHeartbeat refreshes liveness and lazily settles past-deadline rooms.
func RoomHeartbeat(svc *rooms.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID string `json:"room_id"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		view, err := svc.Heartbeat(c.Request.Context(), subjectID(c), req.RoomID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// RoomState returns the caller's view of a room.
func RoomState(svc *rooms.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.State(c.Request.Context(), subjectID(c), c.Param("roomId"))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// ListRooms returns public lobby projections for a kind.
func ListRooms(svc *rooms.Service, kind game.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := svc.ListOpen(c.Request.Context(), kind)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"rooms": views})
	}
}

// ConquestClick claims one grid cell for the caller.
func ConquestClick(svc *rooms.Service, g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID string `json:"room_id"`
			Cell   int    `json:"cell"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, game.KindConquest); err != nil {
			fail(c, err)
			return
		}
		params, _ := json.Marshal(gin.H{"cell": req.Cell})
		view, err := svc.Act(c.Request.Context(), subject, req.RoomID, game.Action{Name: "claim", Params: params})
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// PistiPlay plays one card from the caller's hand.
func PistiPlay(svc *rooms.Service, g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID    string `json:"room_id"`
			CardIndex int    `json:"card_index"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		subject := subjectID(c)
		if err := g.Allow(c.Request.Context(), subject, game.KindPisti); err != nil {
			fail(c, err)
			return
		}
		params, _ := json.Marshal(gin.H{"card_index": req.CardIndex})
		view, err := svc.Act(c.Request.Context(), subject, req.RoomID, game.Action{Name: "play", Params: params})
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}

// RoomSettle forces settlement of a past-deadline room (settle-on-read from
// the client side). A room not yet past-deadline is returned unchanged.
func RoomSettle(svc *rooms.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RoomID string `json:"room_id"`
		}
		if err := c.BindJSON(&req); err != nil || req.RoomID == "" {
			fail(c, game.ErrValidation)
			return
		}
		view, err := svc.SettleExpired(c.Request.Context(), subjectID(c), req.RoomID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"room": view})
	}
}
