package transact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/branched-services/go-evmprobe"
	"github.com/branched-services/go-evmprobe/internal/metrics"
)

// DefaultFallbackGasLimit is used when the node cannot estimate gas.
const DefaultFallbackGasLimit = uint64(300_000)

// Gas buffer ratio applied to successful estimates (x1.2, floored).
const (
	gasBufferNumerator   = 12
	gasBufferDenominator = 10
)

// Backend is the subset of the chain client the pipeline needs.
type Backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// Pipeline submits legacy transactions for one account.
//
// The nonce is read from the node's pending count on every submission, so
// two submissions in flight at once would race for it. Send holds a mutex
// from nonce fetch through submission; use exactly one Pipeline per account.
type Pipeline struct {
	mu          sync.Mutex
	backend     Backend
	account     *Account
	chainID     *big.Int
	fallbackGas uint64
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFallbackGasLimit overrides DefaultFallbackGasLimit.
func WithFallbackGasLimit(gas uint64) Option {
	return func(p *Pipeline) {
		if gas > 0 {
			p.fallbackGas = gas
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline signing with account for chainID.
func New(backend Backend, account *Account, chainID *big.Int, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:     backend,
		account:     account,
		chainID:     new(big.Int).Set(chainID),
		fallbackGas: DefaultFallbackGasLimit,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Account returns the signing account.
func (p *Pipeline) Account() *Account {
	return p.account
}

// ChainID returns the chain id embedded in every signature.
func (p *Pipeline) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}

// Send encodes a call to fn and submits it to contract `to`.
func (p *Pipeline) Send(ctx context.Context, to common.Address, fn evmprobe.FunctionDescriptor, args ...any) (common.Hash, error) {
	data, err := evmprobe.Encode(fn, args...)
	if err != nil {
		metrics.TxSubmit("encode_error")
		return common.Hash{}, err
	}
	return p.SendData(ctx, to, data)
}

// SendData submits pre-encoded call-data. Each step aborts on failure; no
// step is retried and nothing is submitted unless every earlier step passed.
func (p *Pipeline) SendData(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.build(ctx, to, data)
	if err != nil {
		metrics.TxSubmit("build_error")
		return common.Hash{}, err
	}

	signed, err := p.account.Sign(tx, p.chainID)
	if err != nil {
		metrics.TxSubmit("sign_error")
		return common.Hash{}, fmt.Errorf("transact: sign: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		metrics.TxSubmit("sign_error")
		return common.Hash{}, fmt.Errorf("transact: encode signed tx: %w", err)
	}

	hash, err := p.backend.SendRawTransaction(ctx, raw)
	if err != nil {
		var rpcErr *evmprobe.RPCError
		if !errors.As(err, &rpcErr) {
			// Outcome unknown: the node may already hold the transaction.
			metrics.TxSubmit("transport_error")
			p.logger.Warn("transaction submission outcome unknown", "to", to.Hex(), "nonce", tx.Nonce(), "hash", signed.Hash().Hex(), "error", err)
			return common.Hash{}, err
		}
		metrics.TxSubmit("rejected")
		p.logger.Warn("transaction rejected", "to", to.Hex(), "nonce", tx.Nonce(), "error", err)
		return common.Hash{}, &evmprobe.SubmissionError{Nonce: tx.Nonce(), Err: err}
	}
	if hash == (common.Hash{}) {
		hash = signed.Hash()
	}

	metrics.TxSubmit("ok")
	p.logger.Info("transaction submitted",
		"hash", hash.Hex(),
		"to", to.Hex(),
		"nonce", tx.Nonce(),
		"gas", tx.Gas(),
		"gas_price", tx.GasPrice().String(),
	)
	return hash, nil
}

// build assembles the unsigned legacy transaction: gas limit, gas price,
// pending nonce, zero value.
func (p *Pipeline) build(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	from := p.account.Address()

	gasLimit := p.fallbackGas
	estimate, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: new(big.Int),
		Data:  data,
	})
	switch {
	case err != nil:
		p.logger.Debug("gas estimate failed, using fallback", "to", to.Hex(), "fallback", gasLimit, "error", err)
	case estimate == 0:
		p.logger.Debug("empty gas estimate, using fallback", "to", to.Hex(), "fallback", gasLimit)
	default:
		gasLimit = BufferedGasLimit(estimate)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	gasPrice, err := p.backend.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("transact: gas price: %w", err)
	}
	if gasPrice == nil {
		return nil, errors.New("transact: gas price: node returned no value")
	}

	nonce, err := p.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("transact: nonce: %w", err)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	}), nil
}

// BufferedGasLimit applies the x1.2 safety margin to a gas estimate using
// integer arithmetic (estimate*12/10, floored).
func BufferedGasLimit(estimate uint64) uint64 {
	n := new(big.Int).SetUint64(estimate)
	n.Mul(n, big.NewInt(gasBufferNumerator))
	n.Quo(n, big.NewInt(gasBufferDenominator))
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}
