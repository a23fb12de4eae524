package handlers

import (
	"crypto/rand"
	"log"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatrix/backend/internal/game"
)

// ok wraps a success payload in the response envelope.
func ok(c *gin.Context, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail maps a domain sentinel to its HTTP status with the opaque envelope.
// Unknown errors are logged and reported as a plain internal error.
func fail(c *gin.Context, err error) {
	var status int
	var msg string
	switch err {
	case game.ErrValidation:
		status, msg = http.StatusBadRequest, "invalid request"
	case game.ErrInsufficientBalance:
		status, msg = http.StatusPaymentRequired, "insufficient balance"
	case game.ErrStateConflict:
		status, msg = http.StatusConflict, "state conflict"
	case game.ErrNotFound:
		status, msg = http.StatusNotFound, "not found"
	case game.ErrRateLimited:
		status, msg = http.StatusTooManyRequests, "too many actions"
	default:
		log.Printf("[API] Internal error: %v", err)
		status, msg = http.StatusInternalServerError, "internal error"
	}
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

// generateID generates a random alphanumeric ID
func generateID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// subjectID reads the authenticated subject set by AuthMiddleware.
func subjectID(c *gin.Context) string {
	v, _ := c.Get("subject_id")
	s, _ := v.(string)
	return s
}

func displayName(c *gin.Context) string {
	v, _ := c.Get("display_name")
	s, _ := v.(string)
	return s
}
