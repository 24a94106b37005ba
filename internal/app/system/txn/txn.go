// Package txn runs multi-document writes inside a MongoDB transaction when
// the deployment supports one, and directly otherwise.
//
// Standalone mongod servers reject transactions. Callers that need
// all-or-nothing behaviour there must order their writes and compensate on
// failure; Runner only tells them which mode ran via Transactional.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Transactor runs fn as one unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Direct runs fn without a transaction.
type Direct struct{}

// WithinTx calls fn(ctx).
func (Direct) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Runner is a Transactor backed by a Mongo client session.
type Runner struct {
	client      *mongo.Client
	log         *zap.Logger
	unsupported atomic.Bool
}

// NewRunner creates a Runner. A nil client makes every call direct.
func NewRunner(client *mongo.Client, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, log: logger}
}

// Transactional reports whether the runner still attempts transactions.
func (r *Runner) Transactional() bool {
	return r.client != nil && !r.unsupported.Load()
}

// WithinTx runs fn inside a transaction. If the server turns out not to
// support transactions, the runner remembers that and reruns fn directly.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Transactional() {
		return fn(ctx)
	}

	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			r.disable(err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		r.disable(err)
		return fn(ctx)
	}
	return err
}

func (r *Runner) disable(cause error) {
	if r.unsupported.CompareAndSwap(false, true) {
		r.log.Warn("mongo transactions unavailable; falling back to ordered writes", zap.Error(cause))
	}
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (for example a standalone server).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hasTxn := strings.Contains(s, "transaction")
	hasSession := strings.Contains(s, "session")
	switch {
	case hasTxn && strings.Contains(s, "replica set"):
		return true
	case hasTxn && hasSession:
		return true
	case hasSession && strings.Contains(s, "not supported"):
		return true
	case strings.Contains(s, "illegal operation"):
		return true
	}
	return false
}
