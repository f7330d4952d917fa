package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
)

const defaultTxAttempts = 5

// TxFunc is the body executed inside a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

type txSettings struct {
	maxAttempts int
	readOnly    bool
}

// TxOption customises transaction execution.
type TxOption func(*txSettings)

// WithMaxAttempts overrides the retry budget for contended transactions.
func WithMaxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// WithReadOnly runs the transaction without taking write locks.
func WithReadOnly() TxOption {
	return func(s *txSettings) {
		s.readOnly = true
	}
}

// RunTransaction executes fn inside a Firestore transaction with retry on contention.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if ctx == nil {
		return errors.New("firestore: context is required")
	}
	if client == nil {
		return errors.New("firestore: client is required")
	}
	if fn == nil {
		return errors.New("firestore: transaction func is required")
	}

	settings := txSettings{maxAttempts: defaultTxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	txOpts := []firestore.TransactionOption{firestore.MaxAttempts(settings.maxAttempts)}
	if settings.readOnly {
		txOpts = append(txOpts, firestore.ReadOnly)
	}

	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, txOpts...)
	if err != nil {
		return WrapError("run transaction", err)
	}
	return nil
}
