package transact

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe/chain"
	"github.com/branched-services/go-evmprobe/internal/metrics"
)

// Receipt polling defaults.
const (
	DefaultReceiptTimeout = 120 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// ReceiptFetcher returns a receipt, or nil when the transaction is not mined.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
}

// WaitForReceipt polls for hash until a receipt appears or timeout elapses.
// A nil receipt with a nil error means "not mined yet"; that is a normal
// outcome, not a failure. Fetch errors are returned as-is and cancelling
// ctx stops the wait with ctx.Err().
func WaitForReceipt(ctx context.Context, fetcher ReceiptFetcher, hash common.Hash, timeout, interval time.Duration) (*chain.Receipt, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := time.Now()
	deadline := start.Add(timeout)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for time.Now().Before(deadline) {
		r, err := fetcher.TransactionReceipt(ctx, hash)
		if err != nil {
			metrics.ReceiptWait("error", time.Since(start))
			return nil, err
		}
		if r != nil {
			metrics.ReceiptWait("mined", time.Since(start))
			return r, nil
		}

		// Never sleep past the deadline.
		timer.Reset(min(interval, time.Until(deadline)))
		select {
		case <-ctx.Done():
			metrics.ReceiptWait("cancelled", time.Since(start))
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	metrics.ReceiptWait("timeout", time.Since(start))
	return nil, nil
}

// Succeeded reports whether a receipt is present and its execution succeeded.
func Succeeded(r *chain.Receipt) bool {
	return r.Successful()
}

// WaitForSuccess waits for hash and reports whether it was mined and
// executed successfully. Timing out is reported as false, not an error.
func WaitForSuccess(ctx context.Context, fetcher ReceiptFetcher, hash common.Hash, timeout, interval time.Duration) (bool, error) {
	r, err := WaitForReceipt(ctx, fetcher, hash, timeout, interval)
	if err != nil {
		return false, err
	}
	return Succeeded(r), nil
}
