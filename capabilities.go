package evmprobe

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// CandidateSet is an ordered list of functions believed to provide the same
// capability. Order is priority: the first candidate that works wins.
type CandidateSet struct {
	Capability string
	Candidates []FunctionDescriptor
}

// NewCandidateSet builds a set from descriptors.
func NewCandidateSet(capability string, candidates ...FunctionDescriptor) CandidateSet {
	return CandidateSet{Capability: capability, Candidates: candidates}
}

// Names returns the candidate function names in priority order.
func (s CandidateSet) Names() []string {
	names := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		names[i] = c.Name()
	}
	return names
}

// candidates builds a set of same-shaped functions differing only in name.
func candidates(capability string, inputs, outputs []string, names ...string) CandidateSet {
	set := CandidateSet{Capability: capability, Candidates: make([]FunctionDescriptor, len(names))}
	for i, name := range names {
		set.Candidates[i] = MustFunction(name, inputs, outputs)
	}
	return set
}

var (
	noArgs    []string
	roundArg  = []string{TypeUint256}
	uintOut   = []string{TypeUint256}
	boolOut   = []string{TypeBool}
	addrOut   = []string{TypeAddress}
	noOutputs []string
)

// Round-based game capabilities. Contracts in the wild name these surfaces
// differently; each table lists the known spellings in priority order.
var (
	// CurrentRound reads the active round number.
	CurrentRound = candidates("current_round", noArgs, uintOut, "currentRound")

	// PotDirect reads the prize pot without arguments.
	PotDirect = candidates("pot", noArgs, uintOut, "pot", "getBalance")

	// PotByRound reads the prize pot of a given round.
	PotByRound = candidates("pot_by_round", roundArg, uintOut, "pot", "getPot", "potOf", "pool", "poolOf")

	// RoundOpen reports whether the current round accepts submissions.
	RoundOpen = candidates("round_open", noArgs, boolOut, "isOpen", "isRoundOpen", "isActive", "isRunning", "open")

	// WinnerDirect reads the latest winner without arguments.
	WinnerDirect = candidates("winner", noArgs, addrOut, "winner", "getWinner", "lastWinner")

	// WinnerByRound reads the winner of a given round.
	WinnerByRound = candidates("winner_by_round", roundArg, addrOut, "winnerOf", "getWinnerOf")

	// StartRound advances the game to its next round.
	StartRound = candidates("start_round", noArgs, noOutputs, "start", "startNextRound", "newRound", "openRound")

	// SubmitGuess enters a guess for the current round.
	SubmitGuess = MustFunction("submit", []string{TypeUint256}, noOutputs)
)

// SimpleWallet functions.
var (
	DepositERC20  = MustFunction("depositErc20", []string{TypeAddress, TypeUint256}, noOutputs)
	WithdrawERC20 = MustFunction("withdrawErc20", []string{TypeAddress, TypeUint256}, noOutputs)
)

// erc20ABIJSON is the subset of the ERC-20 interface used here.
const erc20ABIJSON = `[
	{"name": "name", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"name": "symbol", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"name": "decimals", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"name": "balanceOf", "type": "function", "stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "allowance", "type": "function", "stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]},
	{"name": "approve", "type": "function", "stateMutability": "nonpayable",
		"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"outputs": [{"name": "", "type": "bool"}]},
	{"name": "transfer", "type": "function", "stateMutability": "nonpayable",
		"inputs": [{"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"outputs": [{"name": "", "type": "bool"}]},
	{"name": "transferFrom", "type": "function", "stateMutability": "nonpayable",
		"inputs": [{"name": "from", "type": "address"}, {"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"outputs": [{"name": "", "type": "bool"}]}
]`

// ERC20 holds the ERC-20 descriptors keyed by function name.
var ERC20 = MustFunctionsFromABI(erc20ABIJSON)

// ParseABI parses a JSON ABI string into an abi.ABI.
func ParseABI(abiJSON string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}

// FunctionsFromABI parses a JSON ABI and converts every method into a
// descriptor. Keys follow abi.ABI.Methods, so overloads appear as name0, name1.
func FunctionsFromABI(abiJSON string) (map[string]FunctionDescriptor, error) {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		return nil, err
	}
	fns := make(map[string]FunctionDescriptor, len(parsed.Methods))
	for key, m := range parsed.Methods {
		fn, err := FunctionFromABI(m)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Sig, err)
		}
		fns[key] = fn
	}
	return fns, nil
}

// MustFunctionsFromABI is like FunctionsFromABI but panics on error.
func MustFunctionsFromABI(abiJSON string) map[string]FunctionDescriptor {
	fns, err := FunctionsFromABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return fns
}
