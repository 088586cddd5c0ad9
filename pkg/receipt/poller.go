package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	"github.com/hashgraph-online/ledger-client-go/pkg/transaction"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInitialDelay = 250 * time.Millisecond
	DefaultMultiplier   = 2.0
	DefaultMaxDelay     = 8 * time.Second
	DefaultMaxElapsed   = 2 * time.Minute
)

var ErrReceiptTimeout = errors.New("receipt polling budget exhausted")

// Querier sends a query to any node. *network.Client implements it.
type Querier interface {
	Query(ctx context.Context, method string, request []byte) (network.Node, []byte, error)
}

// Config bounds a poll by MaxElapsed, MaxAttempts or both, whichever is set.
// When neither is set the poll is bounded by DefaultMaxElapsed; a zero
// MaxElapsed next to a positive MaxAttempts means no time limit.
type Config struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxElapsed   time.Duration
	MaxAttempts  int
	Jitter       float64
	Logger       *zerolog.Logger
}

type Poller struct {
	querier Querier
	config  Config
	clock   backoff.Clock
	logger  zerolog.Logger
}

// NewPoller creates a new Poller.
func NewPoller(querier Querier, config Config) (*Poller, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = DefaultMultiplier
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must not be negative")
	}
	if config.MaxElapsed < 0 {
		return nil, fmt.Errorf("max elapsed must not be negative")
	}
	if config.MaxElapsed == 0 && config.MaxAttempts == 0 {
		config.MaxElapsed = DefaultMaxElapsed
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		return nil, fmt.Errorf("jitter must be in [0, 1)")
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Poller{querier: querier, config: config, clock: backoff.SystemClock, logger: logger}, nil
}

func (p *Poller) policy() backoff.BackOff {
	exponential := &backoff.ExponentialBackOff{
		InitialInterval:     p.config.InitialDelay,
		RandomizationFactor: p.config.Jitter,
		Multiplier:          p.config.Multiplier,
		MaxInterval:         p.config.MaxDelay,
		MaxElapsedTime:      p.config.MaxElapsed,
		Stop:                backoff.Stop,
		Clock:               p.clock,
	}
	exponential.Reset()

	if p.config.MaxAttempts > 0 {
		return backoff.WithMaxRetries(exponential, uint64(p.config.MaxAttempts-1))
	}
	return exponential
}

// PollReceipt queries the receipt of id until it is terminal. A terminal
// receipt is returned whatever its status; use Receipt.Validate to turn a
// failure status into an error.
func (p *Poller) PollReceipt(ctx context.Context, id transaction.TransactionID) (transaction.Receipt, error) {
	if id.IsZero() {
		return transaction.Receipt{}, fmt.Errorf("transaction ID is required")
	}

	policy := p.policy()
	request := EncodeQuery(id)
	logger := p.logger.With().Str("transaction_id", id.String()).Logger()

	for attempt := 1; ; attempt++ {
		node, raw, err := p.querier.Query(ctx, network.MethodGetTransactionReceipt, request)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return transaction.Receipt{}, ctxErr
			}
			return transaction.Receipt{}, fmt.Errorf("failed to query receipt for %s: %w", id.String(), err)
		}

		answer, err := DecodeResponse(raw)
		if err != nil {
			return transaction.Receipt{}, err
		}

		if !pendingPrecheck(answer.Precheck) {
			if answer.Precheck != hedera.StatusOk {
				return transaction.Receipt{}, &transaction.PrecheckError{
					Status:        answer.Precheck,
					TransactionID: id,
					Node:          node.AccountID,
				}
			}
			if !pendingStatus(answer.Receipt.Status) {
				logger.Debug().
					Int("attempts", attempt).
					Str("status", answer.Receipt.Status.String()).
					Msg("receipt reached terminal status")
				return answer.Receipt, nil
			}
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			return transaction.Receipt{}, fmt.Errorf("%w: transaction %s still pending after %d queries",
				ErrReceiptTimeout, id.String(), attempt)
		}

		logger.Debug().
			Int("attempt", attempt).
			Str("precheck", answer.Precheck.String()).
			Str("status", answer.Receipt.Status.String()).
			Dur("delay", delay).
			Msg("receipt not yet available")

		if err := sleep(ctx, delay); err != nil {
			return transaction.Receipt{}, err
		}
	}
}

// PollTransaction polls the receipt of a submitted transaction and finalizes
// it.
func (p *Poller) PollTransaction(ctx context.Context, tx *transaction.Transaction) (transaction.Receipt, error) {
	if tx.State() != transaction.StateSubmitted {
		return transaction.Receipt{}, transaction.ErrNotSubmitted
	}

	receipt, err := p.PollReceipt(ctx, tx.TransactionID())
	if err != nil {
		return transaction.Receipt{}, err
	}
	if err := tx.Finalize(receipt); err != nil {
		return transaction.Receipt{}, err
	}
	return receipt, nil
}

// PollReceipts polls independent transactions concurrently. Receipts are
// returned in the order of ids; the first error cancels the remaining polls.
func (p *Poller) PollReceipts(ctx context.Context, ids []transaction.TransactionID) ([]transaction.Receipt, error) {
	receipts := make([]transaction.Receipt, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	for index, id := range ids {
		group.Go(func() error {
			receipt, err := p.PollReceipt(groupCtx, id)
			if err != nil {
				return err
			}
			receipts[index] = receipt
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func pendingPrecheck(status hedera.Status) bool {
	switch status {
	case hedera.StatusBusy, hedera.StatusUnknown, hedera.StatusReceiptNotFound, hedera.StatusPlatformNotActive:
		return true
	default:
		return false
	}
}

func pendingStatus(status hedera.Status) bool {
	switch status {
	case hedera.StatusUnknown, hedera.StatusOk, hedera.StatusBusy, hedera.StatusReceiptNotFound,
		hedera.StatusRecordNotFound, hedera.StatusPlatformNotActive:
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
