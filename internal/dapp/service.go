// Package dapp implements the caller-facing contract operations: network
// status, ERC-20 reads and writes, SimpleWallet deposits and a round-based
// guessing game whose function names vary between deployments.
package dapp

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe"
	"github.com/branched-services/go-evmprobe/chain"
	"github.com/branched-services/go-evmprobe/internal/metrics"
	"github.com/branched-services/go-evmprobe/transact"
)

// Service composes a Node, a Submitter and a probe Resolver.
type Service struct {
	node     Node
	sender   evmprobe.Submitter
	from     common.Address
	resolver *evmprobe.Resolver
	endpoint string
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEndpoint records the RPC URL for status reporting. It is only ever
// displayed masked.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) {
		s.endpoint = endpoint
	}
}

// WithReceiptTiming overrides the receipt wait budget and poll interval.
func WithReceiptTiming(timeout, interval time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger sets the logger passed to the probe resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service reading through node and submitting through
// sender on behalf of from.
func NewService(node Node, sender evmprobe.Submitter, from common.Address, opts ...Option) *Service {
	s := &Service{
		node:     node,
		sender:   sender,
		from:     from,
		timeout:  transact.DefaultReceiptTimeout,
		interval: transact.DefaultPollInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = evmprobe.NewResolver(node,
		evmprobe.WithSubmitter(sender),
		evmprobe.WithLogger(s.logger),
		evmprobe.WithObserver(func(capability string, outcome evmprobe.Outcome) {
			metrics.Probe(capability, outcome.String())
		}),
	)
	return s
}

/* ---- network ---- */

// Address returns the signing account address.
func (s *Service) Address() common.Address {
	return s.from
}

// ClientVersion returns the node's client string, or "" when unreachable.
func (s *Service) ClientVersion(ctx context.Context) string {
	v, err := s.node.ClientVersion(ctx)
	if err != nil {
		return ""
	}
	return v
}

// Connected reports whether the node answers with a non-blank client version.
func (s *Service) Connected(ctx context.Context) bool {
	return strings.TrimSpace(s.ClientVersion(ctx)) != ""
}

// ChainIDHex returns the node's chain id as 0x-hex, or "0x0" when unreachable.
func (s *Service) ChainIDHex(ctx context.Context) string {
	id, err := s.node.ChainID(ctx)
	if err != nil || id == nil {
		return "0x0"
	}
	return "0x" + id.Text(16)
}

// BlockNumber returns the latest block number.
func (s *Service) BlockNumber(ctx context.Context) (uint64, error) {
	return s.node.BlockNumber(ctx)
}

// Balance returns the native balance of account.
func (s *Service) Balance(ctx context.Context, account common.Address) (*Balance, error) {
	wei, err := s.node.BalanceAt(ctx, account)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Address: account,
		Wei:     wei,
		Ether:   evmprobe.FormatAmount(wei, evmprobe.EtherDecimals),
	}, nil
}

// ConnectionSummary is a one-line status for logs and the CLI.
func (s *Service) ConnectionSummary(ctx context.Context) string {
	version := s.ClientVersion(ctx)
	return fmt.Sprintf("connected=%t, url=%s, client=%s", strings.TrimSpace(version) != "", MaskURL(s.endpoint), version)
}

// Endpoint returns the masked RPC URL.
func (s *Service) Endpoint() string {
	return MaskURL(s.endpoint)
}

// MaskURL hides all but the first six characters of the last path segment,
// which for hosted providers is usually the API key.
func MaskURL(raw string) string {
	idx := strings.LastIndex(raw, "/")
	if idx < 0 || idx == len(raw)-1 {
		return raw
	}
	key := raw[idx+1:]
	head := ""
	if len(key) > 6 {
		head = key[:6]
	}
	return raw[:idx+1] + head + "****"
}

// Host returns the host part of an RPC URL, or "" when it does not parse.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

/* ---- calls ---- */

// call encodes, executes and decodes a single read-only call.
func (s *Service) call(ctx context.Context, to common.Address, fn evmprobe.FunctionDescriptor, args ...any) ([]any, error) {
	data, err := evmprobe.Encode(fn, args...)
	if err != nil {
		return nil, err
	}
	ret, err := s.node.CallContract(ctx, to, data)
	if err != nil {
		return nil, err
	}
	return evmprobe.Decode(fn, ret)
}

func (s *Service) callUint(ctx context.Context, to common.Address, fn evmprobe.FunctionDescriptor, args ...any) (*big.Int, error) {
	values, err := s.call(ctx, to, fn, args...)
	if err != nil {
		return nil, err
	}
	return evmprobe.AsBigInt(values[0])
}

func (s *Service) callString(ctx context.Context, to common.Address, fn evmprobe.FunctionDescriptor) (string, error) {
	values, err := s.call(ctx, to, fn)
	if err != nil {
		return "", err
	}
	return evmprobe.AsString(values[0])
}

/* ---- ERC-20 ---- */

// Decimals reads the token's decimals.
func (s *Service) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	values, err := s.call(ctx, token, evmprobe.ERC20["decimals"])
	if err != nil {
		return 0, err
	}
	return evmprobe.AsUint8(values[0])
}

// BalanceOf reads owner's raw token balance.
func (s *Service) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return s.callUint(ctx, token, evmprobe.ERC20["balanceOf"], owner)
}

// Allowance reads the raw amount spender may move on behalf of owner.
func (s *Service) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return s.callUint(ctx, token, evmprobe.ERC20["allowance"], owner, spender)
}

// Symbol reads the token symbol.
func (s *Service) Symbol(ctx context.Context, token common.Address) (string, error) {
	return s.callString(ctx, token, evmprobe.ERC20["symbol"])
}

// Name reads the token name.
func (s *Service) Name(ctx context.Context, token common.Address) (string, error) {
	return s.callString(ctx, token, evmprobe.ERC20["name"])
}

// Meta reads name, symbol and decimals.
func (s *Service) Meta(ctx context.Context, token common.Address) (*TokenMeta, error) {
	name, err := s.Name(ctx, token)
	if err != nil {
		return nil, err
	}
	symbol, err := s.Symbol(ctx, token)
	if err != nil {
		return nil, err
	}
	decimals, err := s.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return &TokenMeta{Token: token, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

// TokenBalance reads owner's balance with its decimals.
func (s *Service) TokenBalance(ctx context.Context, token, owner common.Address) (*TokenAmount, error) {
	decimals, err := s.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	raw, err := s.BalanceOf(ctx, token, owner)
	if err != nil {
		return nil, err
	}
	return newTokenAmount(token, raw, decimals), nil
}

// TokenAllowance reads an allowance with its decimals.
func (s *Service) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*TokenAmount, error) {
	decimals, err := s.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	raw, err := s.Allowance(ctx, token, owner, spender)
	if err != nil {
		return nil, err
	}
	return newTokenAmount(token, raw, decimals), nil
}

func newTokenAmount(token common.Address, raw *big.Int, decimals uint8) *TokenAmount {
	return &TokenAmount{
		Token:    token,
		Raw:      raw,
		Decimals: decimals,
		Human:    evmprobe.FormatAmount(raw, decimals),
	}
}

// ToRawByToken scales human by the token's on-chain decimals.
func (s *Service) ToRawByToken(ctx context.Context, token common.Address, human *big.Rat) (*big.Int, error) {
	decimals, err := s.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return evmprobe.ToRaw(human, decimals)
}

// ToHumanByToken scales raw down by the token's on-chain decimals.
func (s *Service) ToHumanByToken(ctx context.Context, token common.Address, raw *big.Int) (*big.Rat, error) {
	decimals, err := s.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	return evmprobe.ToHuman(raw, decimals), nil
}

// Approve lets spender move raw tokens from the signing account.
func (s *Service) Approve(ctx context.Context, token, spender common.Address, raw *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, token, evmprobe.ERC20["approve"], spender, raw)
}

// Transfer moves raw tokens from the signing account to `to`.
func (s *Service) Transfer(ctx context.Context, token, to common.Address, raw *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, token, evmprobe.ERC20["transfer"], to, raw)
}

// TransferFrom moves raw tokens between two accounts using an allowance.
func (s *Service) TransferFrom(ctx context.Context, token, from, to common.Address, raw *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, token, evmprobe.ERC20["transferFrom"], from, to, raw)
}

/* ---- SimpleWallet ---- */

// DepositERC20 deposits raw tokens into a SimpleWallet. The wallet must
// already hold an allowance.
func (s *Service) DepositERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, wallet, evmprobe.DepositERC20, token, raw)
}

// WithdrawERC20 withdraws raw tokens from a SimpleWallet.
func (s *Service) WithdrawERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, wallet, evmprobe.WithdrawERC20, token, raw)
}

/* ---- receipts ---- */

// WaitForReceipt polls for hash using the configured timing. A nil receipt
// means the transaction was not mined in time.
func (s *Service) WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	return transact.WaitForReceipt(ctx, s.node, hash, s.timeout, s.interval)
}

// IsMinedAndSuccessful reports whether hash was mined with success status
// within the configured timeout.
func (s *Service) IsMinedAndSuccessful(ctx context.Context, hash common.Hash) (bool, error) {
	return transact.WaitForSuccess(ctx, s.node, hash, s.timeout, s.interval)
}
