package ledger

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/models"
)

// GetOrCreate returns the account for the given subject, creating it with the
// starting balance on first contact.
func GetOrCreate(db *sqlx.DB, subjectID, displayName string, startingBalance int64) (*models.Account, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	var a models.Account
	err := db.Get(&a, `SELECT subject_id, balance, display_name, created_at, updated_at FROM accounts WHERE subject_id=$1`, subjectID)
	if err == nil {
		return &a, nil
	}

	if _, err := db.Exec(`INSERT INTO accounts (subject_id, balance, display_name, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW()) ON CONFLICT (subject_id) DO NOTHING`,
		subjectID, startingBalance, displayName); err != nil {
		return nil, err
	}
	if err := db.Get(&a, `SELECT subject_id, balance, display_name, created_at, updated_at FROM accounts WHERE subject_id=$1`, subjectID); err != nil {
		return nil, err
	}
	log.Printf("[LEDGER] Account created: subject=%s balance=%d", subjectID, startingBalance)
	return &a, nil
}

// Get returns the account for the given subject.
func Get(db *sqlx.DB, subjectID string) (*models.Account, error) {
	var a models.Account
	if err := db.Get(&a, `SELECT subject_id, balance, display_name, created_at, updated_at FROM accounts WHERE subject_id=$1`, subjectID); err != nil {
		return nil, game.ErrNotFound
	}
	return &a, nil
}

// Debit removes amount from the subject's balance inside an existing tx.
// The balance guard is part of the UPDATE itself so a concurrent debit can
// never drive the balance negative.
func Debit(tx *sqlx.Tx, subjectID string, amount int64) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	if amount < 0 {
		return game.ErrValidation
	}

	res, err := tx.Exec(`UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE subject_id = $2 AND balance >= $1`, amount, subjectID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrInsufficientBalance
	}

	log.Printf("[LEDGER] Debit: subject=%s amount=%d", subjectID, amount)
	return nil
}

// Credit adds amount to the subject's balance inside an existing tx. Crediting
// a missing account is a programming error and is reported as such.
func Credit(tx *sqlx.Tx, subjectID string, amount int64) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	if amount < 0 {
		return game.ErrValidation
	}
	if amount == 0 {
		return nil
	}

	res, err := tx.Exec(`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE subject_id = $2`, amount, subjectID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("credit to unknown account %s", subjectID)
	}

	log.Printf("[LEDGER] Credit: subject=%s amount=%d", subjectID, amount)
	return nil
}
