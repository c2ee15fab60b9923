package dapp

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe/chain"
)

// LoggingMiddleware returns an API middleware that logs all operations.
// Transactions are logged at info, reads at debug.
func LoggingMiddleware(logger *slog.Logger) func(API) API {
	return func(next API) API {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   API
	logger *slog.Logger
}

func (m *loggingMiddleware) Address() common.Address {
	return m.next.Address()
}

func (m *loggingMiddleware) Connected(ctx context.Context) bool {
	start := time.Now()
	ok := m.next.Connected(ctx)
	m.logger.Debug("Connected", "connected", ok, "duration", time.Since(start))
	return ok
}

func (m *loggingMiddleware) ClientVersion(ctx context.Context) string {
	return m.next.ClientVersion(ctx)
}

func (m *loggingMiddleware) ChainIDHex(ctx context.Context) string {
	return m.next.ChainIDHex(ctx)
}

func (m *loggingMiddleware) BlockNumber(ctx context.Context) (uint64, error) {
	start := time.Now()
	n, err := m.next.BlockNumber(ctx)
	m.logger.Debug("BlockNumber", "block", n, "duration", time.Since(start), "error", err)
	return n, err
}

func (m *loggingMiddleware) Balance(ctx context.Context, account common.Address) (*Balance, error) {
	start := time.Now()
	b, err := m.next.Balance(ctx, account)
	m.logger.Debug("Balance", "account", account.Hex(), "duration", time.Since(start), "error", err)
	return b, err
}

func (m *loggingMiddleware) ConnectionSummary(ctx context.Context) string {
	return m.next.ConnectionSummary(ctx)
}

func (m *loggingMiddleware) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	start := time.Now()
	d, err := m.next.Decimals(ctx, token)
	m.logger.Debug("Decimals", "token", token.Hex(), "duration", time.Since(start), "error", err)
	return d, err
}

func (m *loggingMiddleware) TokenBalance(ctx context.Context, token, owner common.Address) (*TokenAmount, error) {
	start := time.Now()
	a, err := m.next.TokenBalance(ctx, token, owner)
	m.logger.Debug("TokenBalance",
		"token", token.Hex(),
		"owner", owner.Hex(),
		"duration", time.Since(start),
		"error", err,
	)
	return a, err
}

func (m *loggingMiddleware) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*TokenAmount, error) {
	start := time.Now()
	a, err := m.next.TokenAllowance(ctx, token, owner, spender)
	m.logger.Debug("TokenAllowance",
		"token", token.Hex(),
		"owner", owner.Hex(),
		"spender", spender.Hex(),
		"duration", time.Since(start),
		"error", err,
	)
	return a, err
}

func (m *loggingMiddleware) Meta(ctx context.Context, token common.Address) (*TokenMeta, error) {
	start := time.Now()
	meta, err := m.next.Meta(ctx, token)
	m.logger.Debug("Meta", "token", token.Hex(), "duration", time.Since(start), "error", err)
	return meta, err
}

func (m *loggingMiddleware) ToRawByToken(ctx context.Context, token common.Address, human *big.Rat) (*big.Int, error) {
	return m.next.ToRawByToken(ctx, token, human)
}

func (m *loggingMiddleware) Approve(ctx context.Context, token, spender common.Address, raw *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.Approve(ctx, token, spender, raw)
	m.logTx("Approve", hash, start, err, "token", token.Hex(), "spender", spender.Hex(), "amount_raw", raw.String())
	return hash, err
}

func (m *loggingMiddleware) Transfer(ctx context.Context, token, to common.Address, raw *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.Transfer(ctx, token, to, raw)
	m.logTx("Transfer", hash, start, err, "token", token.Hex(), "to", to.Hex(), "amount_raw", raw.String())
	return hash, err
}

func (m *loggingMiddleware) TransferFrom(ctx context.Context, token, from, to common.Address, raw *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.TransferFrom(ctx, token, from, to, raw)
	m.logTx("TransferFrom", hash, start, err, "token", token.Hex(), "from", from.Hex(), "to", to.Hex(), "amount_raw", raw.String())
	return hash, err
}

func (m *loggingMiddleware) DepositERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.DepositERC20(ctx, wallet, token, raw)
	m.logTx("DepositERC20", hash, start, err, "wallet", wallet.Hex(), "token", token.Hex(), "amount_raw", raw.String())
	return hash, err
}

func (m *loggingMiddleware) WithdrawERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.WithdrawERC20(ctx, wallet, token, raw)
	m.logTx("WithdrawERC20", hash, start, err, "wallet", wallet.Hex(), "token", token.Hex(), "amount_raw", raw.String())
	return hash, err
}

func (m *loggingMiddleware) Submit(ctx context.Context, game common.Address, guess *big.Int) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.Submit(ctx, game, guess)
	m.logTx("Submit", hash, start, err, "game", game.Hex(), "guess", guess.String())
	return hash, err
}

func (m *loggingMiddleware) CurrentRound(ctx context.Context, game common.Address) (*big.Int, error) {
	start := time.Now()
	round, err := m.next.CurrentRound(ctx, game)
	m.logger.Debug("CurrentRound", "game", game.Hex(), "duration", time.Since(start), "error", err)
	return round, err
}

func (m *loggingMiddleware) State(ctx context.Context, game common.Address) (*GameState, error) {
	start := time.Now()
	st, err := m.next.State(ctx, game)
	m.logger.Debug("State", "game", game.Hex(), "duration", time.Since(start), "error", err)
	return st, err
}

func (m *loggingMiddleware) Inspect(ctx context.Context, game common.Address) (*Inspection, error) {
	start := time.Now()
	in, err := m.next.Inspect(ctx, game)
	m.logger.Debug("Inspect", "game", game.Hex(), "duration", time.Since(start), "error", err)
	return in, err
}

func (m *loggingMiddleware) StartNextRound(ctx context.Context, game common.Address) (common.Hash, error) {
	start := time.Now()
	hash, err := m.next.StartNextRound(ctx, game)
	m.logTx("StartNextRound", hash, start, err, "game", game.Hex())
	return hash, err
}

func (m *loggingMiddleware) WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	start := time.Now()
	r, err := m.next.WaitForReceipt(ctx, hash)
	m.logger.Info("WaitForReceipt",
		"hash", hash.Hex(),
		"mined", r != nil,
		"success", r.Successful(),
		"duration", time.Since(start),
		"error", err,
	)
	return r, err
}

func (m *loggingMiddleware) IsMinedAndSuccessful(ctx context.Context, hash common.Hash) (bool, error) {
	start := time.Now()
	ok, err := m.next.IsMinedAndSuccessful(ctx, hash)
	m.logger.Info("IsMinedAndSuccessful", "hash", hash.Hex(), "success", ok, "duration", time.Since(start), "error", err)
	return ok, err
}

func (m *loggingMiddleware) logTx(op string, hash common.Hash, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "tx_hash", hash.Hex(), "duration", time.Since(start), "error", err)
	m.logger.Info(op, attrs...)
}
