package repository

import (
	"context"
	"database/sql"
	"errors"
)

// WalletRepo tracks per-user wallet balances. The coordination core only
// ever credits (refunds on cancellation) and reads balances; charging is
// the payment provider's business.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo returns a WalletRepo bound to the provided database.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// Credit adds amountCents to the user's balance, creating the wallet row
// on first credit.
func (r *WalletRepo) Credit(ctx context.Context, userID string, amountCents uint32) error {
	const q = `INSERT INTO wallets (user_id, balance_cents) VALUES (?, ?)
	           ON DUPLICATE KEY UPDATE balance_cents = balance_cents + VALUES(balance_cents)`
	_, err := r.db.ExecContext(ctx, q, userID, amountCents)
	return err
}

// Balance returns the user's balance in cents; zero for users without a
// wallet row yet.
func (r *WalletRepo) Balance(ctx context.Context, userID string) (uint64, error) {
	var balance uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}
