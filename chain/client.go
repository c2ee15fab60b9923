// Package chain is a thin blocking client over the EVM JSON-RPC methods
// used by evmprobe. Each method maps to exactly one RPC call; nothing is
// retried or cached.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/branched-services/go-evmprobe"
	"github.com/branched-services/go-evmprobe/internal/metrics"
)

// Block tags.
const (
	Latest  = "latest"
	Pending = "pending"
)

// Config identifies the chain and the endpoint serving it. It is loaded
// once at startup and read-only afterwards.
type Config struct {
	ChainID  *big.Int
	Endpoint string
}

// Client wraps an rpc.Client. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces outgoing requests to rps with the given burst.
// Callers block (honouring ctx) instead of being rejected.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger for per-call debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used by Dial.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     30 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

// Dial connects to cfg.Endpoint.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := newClient(opts)
	if c.http == nil {
		c.http = defaultHTTPClient()
	}
	rc, err := rpc.DialOptions(ctx, cfg.Endpoint, rpc.WithHTTPClient(c.http))
	if err != nil {
		return nil, &evmprobe.TransportError{Method: "dial", Err: err}
	}
	c.rpc = rc
	return c, nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rc *rpc.Client, opts ...Option) *Client {
	c := newClient(opts)
	c.rpc = rc
	return c
}

func newClient(opts []Option) *Client {
	c := &Client{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// call performs one RPC round-trip and classifies any failure.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &evmprobe.TransportError{Method: method, Err: err}
		}
	}

	start := time.Now()
	err := c.rpc.CallContext(ctx, result, method, args...)
	err = classify(method, err)

	status := "ok"
	var rpcErr *evmprobe.RPCError
	switch {
	case errors.As(err, &rpcErr):
		status = "rpc_error"
	case err != nil:
		status = "transport_error"
	}
	metrics.RPCCall(method, status, time.Since(start))
	c.logger.Debug("rpc", "method", method, "status", status, "duration", time.Since(start), "error", err)
	return err
}

// classify converts go-ethereum rpc errors into the evmprobe taxonomy.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var jsonErr rpc.Error
	if errors.As(err, &jsonErr) {
		e := &evmprobe.RPCError{Method: method, Code: jsonErr.ErrorCode(), Message: jsonErr.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			e.Data = dataErr.ErrorData()
		}
		return e
	}
	return &evmprobe.TransportError{Method: method, Err: err}
}

type callArgs struct {
	From  *common.Address `json:"from,omitempty"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func toCallArgs(msg ethereum.CallMsg) callArgs {
	args := callArgs{To: msg.To, Data: msg.Data}
	if msg.From != (common.Address{}) {
		from := msg.From
		args.From = &from
	}
	if msg.Gas != 0 {
		gas := hexutil.Uint64(msg.Gas)
		args.Gas = &gas
	}
	if msg.Value != nil {
		args.Value = (*hexutil.Big)(msg.Value)
	}
	return args
}

// CallContract executes eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	err := c.call(ctx, &out, "eth_call", toCallArgs(ethereum.CallMsg{To: &to, Data: data}), Latest)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SendRawTransaction submits a signed, RLP-encoded transaction.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := c.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw))
	return hash, err
}

// TransactionReceipt returns the receipt for hash, or nil when the
// transaction has not been mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *Receipt
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return r, nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	err := c.call(ctx, &n, "eth_blockNumber")
	return uint64(n), err
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

// BalanceAt returns the native balance of account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := c.call(ctx, &bal, "eth_getBalance", account, Latest); err != nil {
		return nil, err
	}
	return (*big.Int)(&bal), nil
}

// GasPrice returns the node's legacy gas price suggestion.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var price hexutil.Big
	if err := c.call(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&price), nil
}

// PendingNonceAt returns the account's transaction count in the pending block.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce hexutil.Uint64
	err := c.call(ctx, &nonce, "eth_getTransactionCount", account, Pending)
	return uint64(nonce), err
}

// EstimateGas asks the node how much gas msg would use.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas hexutil.Uint64
	err := c.call(ctx, &gas, "eth_estimateGas", toCallArgs(msg))
	return uint64(gas), err
}

// MaxPriorityFeePerGas returns the node's tip suggestion. Legacy
// transactions do not use it.
func (c *Client) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	var tip hexutil.Big
	if err := c.call(ctx, &tip, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	return (*big.Int)(&tip), nil
}

// BaseFee returns the latest block's base fee, or nil on pre-London chains.
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	var head *struct {
		BaseFee *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := c.call(ctx, &head, "eth_getBlockByNumber", Latest, false); err != nil {
		return nil, err
	}
	if head == nil {
		return nil, &evmprobe.RPCError{Method: "eth_getBlockByNumber", Message: "latest block not found"}
	}
	if head.BaseFee == nil {
		return nil, nil
	}
	return (*big.Int)(head.BaseFee), nil
}

// ClientVersion returns the node's web3_clientVersion string.
func (c *Client) ClientVersion(ctx context.Context) (string, error) {
	var v string
	err := c.call(ctx, &v, "web3_clientVersion")
	return v, err
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("chain.Client(rate_limited=%t)", c.limiter != nil)
}
