package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/ledger"
)

// Bootstrap creates (or touches) an account and issues the session JWT. A
// valid bearer token on the request re-binds to the existing subject instead
// of minting a new one, so reloads keep their balance.
func Bootstrap(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name"`
		}
		// Body is optional; an empty one gets a generated name.
		c.ShouldBindJSON(&req)

		name := strings.TrimSpace(req.DisplayName)
		if len(name) > 32 {
			name = name[:32]
		}
		if name == "" {
			name = "guest-" + generateID(6)
		}

		subject := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			if sub, _, err := parseToken(strings.TrimPrefix(auth, "Bearer "), cfg.JWTSecret); err == nil {
				subject = sub
			}
		}
		if subject == "" {
			subject = "sub_" + generateID(16)
		}

		acct, err := ledger.GetOrCreate(db, subject, name, cfg.StartingBalance)
		if err != nil {
			fail(c, err)
			return
		}

		exp := time.Now().Add(24 * time.Hour)
		claims := jwt.MapClaims{"sub": subject, "name": acct.DisplayName, "exp": exp.Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			fail(c, err)
			return
		}

		ok(c, gin.H{
			"token":        signed,
			"subject_id":   subject,
			"display_name": acct.DisplayName,
			"balance":      acct.Balance,
		})
	}
}

func parseToken(token, secret string) (subject, name string, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	claims, okc := parsed.Claims.(jwt.MapClaims)
	if !okc {
		return "", "", fmt.Errorf("invalid token")
	}
	subject, _ = claims["sub"].(string)
	name, _ = claims["name"].(string)
	if subject == "" {
		return "", "", fmt.Errorf("invalid token")
	}
	return subject, name, nil
}

// AuthMiddleware validates the bearer JWT and sets subject_id/display_name in
// the request context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing token"})
			return
		}
		subject, name, err := parseToken(strings.TrimPrefix(auth, "Bearer "), cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			return
		}
		c.Set("subject_id", subject)
		c.Set("display_name", name)
		c.Next()
	}
}

// GetMe returns the authenticated subject's wallet.
func GetMe(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := ledger.Get(db, subjectID(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{
			"subject_id":   acct.SubjectID,
			"display_name": acct.DisplayName,
			"balance":      acct.Balance,
		})
	}
}
