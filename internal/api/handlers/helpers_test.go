package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/playmatrix/backend/internal/game"
)

func TestFailStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{game.ErrValidation, http.StatusBadRequest},
		{game.ErrInsufficientBalance, http.StatusPaymentRequired},
		{game.ErrStateConflict, http.StatusConflict},
		{game.ErrNotFound, http.StatusNotFound},
		{game.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		fail(c, tc.err)

		if w.Code != tc.status {
			t.Errorf("fail(%v) status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var body struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if body.OK {
			t.Errorf("fail(%v) ok = true, want false", tc.err)
		}
		if body.Error == "" {
			t.Errorf("fail(%v) error message is empty", tc.err)
		}
	}
}

func TestOKEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	ok(c, gin.H{"balance": 42})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("ok flag = %v, want true", body["ok"])
	}
	if body["balance"] != float64(42) {
		t.Errorf("balance = %v, want 42", body["balance"])
	}
}

func TestGenerateIDLengthAndCharset(t *testing.T) {
	id := generateID(16)
	if len(id) != 16 {
		t.Fatalf("len = %d, want 16", len(id))
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			t.Errorf("unexpected character %q in id %s", r, id)
		}
	}
}
