// Package ledger implements the credit economy around paid collection
// calls: reserve before, settle after, refund on failure. Every operation
// appends to an immutable transaction log; the available balance is always
// derived, never cached.
package ledger

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/store"
)

// Ledger coordinates credit reservations, settlements, and refunds.
// It is stateless; correctness under concurrent workers is delegated to
// the store's transaction isolation.
type Ledger struct {
	store store.Store
}

// New creates a Ledger over the given store.
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Entry identifies one collection call in the ledger: who is paying, which
// run, and which arena/platform/tier is being exercised.
type Entry struct {
	UserID   string
	RunID    string
	Arena    string
	Platform string
	Tier     model.Tier
}

// GetBalance returns the user's current credit position. Side-effect free.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return l.store.GetBalance(ctx, userID)
}

// Reserve pre-authorizes amount credits for a collection call. It fails
// with *model.InsufficientCreditError and writes nothing when the balance
// does not cover the amount. Zero-amount reservations always succeed so
// free-tier calls still leave an auditable row.
func (l *Ledger) Reserve(ctx context.Context, e Entry, amount float64) (string, error) {
	if amount < 0 {
		return "", eris.Errorf("ledger: negative reservation amount %.2f", amount)
	}

	id, err := l.store.ReserveCredits(ctx, transaction(e, amount, ""))
	if err != nil {
		var insufficient *model.InsufficientCreditError
		if errors.As(err, &insufficient) {
			zap.L().Info("reservation rejected",
				zap.String("user_id", e.UserID),
				zap.String("platform", e.Platform),
				zap.Float64("required", insufficient.Required),
				zap.Float64("available", insufficient.Available),
			)
		}
		return "", err
	}

	zap.L().Debug("credits reserved",
		zap.String("user_id", e.UserID),
		zap.String("run_id", e.RunID),
		zap.String("platform", e.Platform),
		zap.Float64("amount", amount),
	)
	return id, nil
}

// Settle records the actual cost of a collection call against the
// outstanding reservation for the (run, arena, platform) triple. When the
// actual cost came in under the reservation the surplus is refunded
// automatically in the same commit; the caller never computes it. An
// overrun is recorded at face value and logged.
func (l *Ledger) Settle(ctx context.Context, e Entry, actual float64) (*store.SettleResult, error) {
	if actual < 0 {
		return nil, eris.Errorf("ledger: negative settlement amount %.2f", actual)
	}

	result, err := l.store.SettleCredits(ctx, transaction(e, actual, ""))
	if err != nil {
		return nil, err
	}

	if result.Overrun > 0 {
		zap.L().Warn("settlement exceeds reservation",
			zap.String("user_id", e.UserID),
			zap.String("run_id", e.RunID),
			zap.String("platform", e.Platform),
			zap.Float64("actual", actual),
			zap.Float64("overrun", result.Overrun),
		)
	}
	return result, nil
}

// Refund returns amount credits directly, used when a collection task
// failed entirely and the whole reservation must be released.
func (l *Ledger) Refund(ctx context.Context, e Entry, amount float64, description string) (string, error) {
	if amount < 0 {
		return "", eris.Errorf("ledger: negative refund amount %.2f", amount)
	}

	tx := transaction(e, amount, description)
	tx.Kind = model.TxRefund
	return l.store.AppendTransaction(ctx, tx)
}

// History lists recent transactions matching the filter, newest first.
func (l *Ledger) History(ctx context.Context, filter store.TransactionFilter) ([]model.CreditTransaction, error) {
	return l.store.ListTransactions(ctx, filter)
}

func transaction(e Entry, amount float64, description string) model.CreditTransaction {
	return model.CreditTransaction{
		UserID:      e.UserID,
		RunID:       e.RunID,
		Arena:       e.Arena,
		Platform:    e.Platform,
		Tier:        e.Tier,
		Amount:      amount,
		Description: description,
	}
}
