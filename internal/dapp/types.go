package dapp

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe/chain"
)

// Node is the subset of chain.Client the service reads through.
type Node interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	ClientVersion(ctx context.Context) (string, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
}

// Balance is a native-currency balance in wei and ether.
type Balance struct {
	Address common.Address
	Wei     *big.Int
	Ether   string
}

// TokenAmount is a raw ERC-20 quantity together with its decimals and
// human-readable rendering.
type TokenAmount struct {
	Token    common.Address
	Raw      *big.Int
	Decimals uint8
	Human    string
}

// TokenMeta is ERC-20 metadata.
type TokenMeta struct {
	Token    common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// GameState is the round number and prize pot of a round-based game.
type GameState struct {
	Round *big.Int
	Pot   *big.Int
}

// Inspection is a best-effort view of a round-based game. Open and Winner
// are nil when no known function answered.
type Inspection struct {
	Round  *big.Int
	Pot    *big.Int
	Open   *bool
	Winner *common.Address
}

// API is the set of operations exposed to the HTTP server and CLI.
type API interface {
	Address() common.Address
	Connected(ctx context.Context) bool
	ClientVersion(ctx context.Context) string
	ChainIDHex(ctx context.Context) string
	BlockNumber(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account common.Address) (*Balance, error)
	ConnectionSummary(ctx context.Context) string

	Decimals(ctx context.Context, token common.Address) (uint8, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*TokenAmount, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*TokenAmount, error)
	Meta(ctx context.Context, token common.Address) (*TokenMeta, error)
	ToRawByToken(ctx context.Context, token common.Address, human *big.Rat) (*big.Int, error)

	Approve(ctx context.Context, token, spender common.Address, raw *big.Int) (common.Hash, error)
	Transfer(ctx context.Context, token, to common.Address, raw *big.Int) (common.Hash, error)
	TransferFrom(ctx context.Context, token, from, to common.Address, raw *big.Int) (common.Hash, error)
	DepositERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error)
	WithdrawERC20(ctx context.Context, wallet, token common.Address, raw *big.Int) (common.Hash, error)

	Submit(ctx context.Context, game common.Address, guess *big.Int) (common.Hash, error)
	CurrentRound(ctx context.Context, game common.Address) (*big.Int, error)
	State(ctx context.Context, game common.Address) (*GameState, error)
	Inspect(ctx context.Context, game common.Address) (*Inspection, error)
	StartNextRound(ctx context.Context, game common.Address) (common.Hash, error)

	WaitForReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error)
	IsMinedAndSuccessful(ctx context.Context, hash common.Hash) (bool, error)
}

var _ API = (*Service)(nil)
