package dapp

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branched-services/go-evmprobe"
)

// Submit enters guess in the current round.
func (s *Service) Submit(ctx context.Context, game common.Address, guess *big.Int) (common.Hash, error) {
	return s.sender.Send(ctx, game, evmprobe.SubmitGuess, guess)
}

// CurrentRound reads currentRound(). Unlike the probed reads it fails
// loudly: every supported game exposes it.
func (s *Service) CurrentRound(ctx context.Context, game common.Address) (*big.Int, error) {
	res := s.resolver.Resolve(ctx, game, evmprobe.CurrentRound)
	if !res.Found() {
		return nil, firstFailure(ctx, res)
	}
	return res.Uint(), nil
}

// Pot reads pot(), falling back to getBalance(). Both failing is an error.
func (s *Service) Pot(ctx context.Context, game common.Address) (*big.Int, error) {
	res := s.resolver.Resolve(ctx, game, evmprobe.PotDirect)
	if !res.Found() {
		return nil, &evmprobe.NoMatchingFunctionError{Capability: res.Capability, Attempts: res.Attempts}
	}
	return res.Uint(), nil
}

// PotSmart tries the argument-free pot readers, then the round-keyed ones
// with the current round. It never fails: an unreadable pot is zero.
func (s *Service) PotSmart(ctx context.Context, game common.Address) *big.Int {
	if res := s.resolver.Resolve(ctx, game, evmprobe.PotDirect); res.Found() {
		return res.Uint()
	}
	round, err := s.CurrentRound(ctx, game)
	if err != nil {
		s.logger.Debug("pot by round skipped, round unreadable", "game", game.Hex(), "error", err)
		return new(big.Int)
	}
	return s.resolver.Resolve(ctx, game, evmprobe.PotByRound, round).Uint()
}

// IsOpen reports whether the current round accepts guesses. ok is false
// when no known function answered.
func (s *Service) IsOpen(ctx context.Context, game common.Address) (open bool, ok bool) {
	return s.resolver.Resolve(ctx, game, evmprobe.RoundOpen).Bool()
}

// Winner returns the latest winner, trying the argument-free readers and
// then the round-keyed ones. ok is false when no known function answered.
func (s *Service) Winner(ctx context.Context, game common.Address) (winner common.Address, ok bool) {
	if w, ok := s.resolver.Resolve(ctx, game, evmprobe.WinnerDirect).Address(); ok {
		return w, true
	}
	round, err := s.CurrentRound(ctx, game)
	if err != nil {
		return common.Address{}, false
	}
	return s.resolver.Resolve(ctx, game, evmprobe.WinnerByRound, round).Address()
}

// StartNextRound submits the first start function the node accepts.
// Owner-only contracts reject it for other accounts.
func (s *Service) StartNextRound(ctx context.Context, game common.Address) (common.Hash, error) {
	sub, err := s.resolver.Transact(ctx, game, evmprobe.StartRound)
	if err != nil {
		return common.Hash{}, err
	}
	return sub.TxHash, nil
}

// State reads the current round and the best-effort pot.
func (s *Service) State(ctx context.Context, game common.Address) (*GameState, error) {
	round, err := s.CurrentRound(ctx, game)
	if err != nil {
		return nil, err
	}
	return &GameState{Round: round, Pot: s.PotSmart(ctx, game)}, nil
}

// Inspect reads round, pot, open state and winner in one pass.
func (s *Service) Inspect(ctx context.Context, game common.Address) (*Inspection, error) {
	state, err := s.State(ctx, game)
	if err != nil {
		return nil, err
	}
	out := &Inspection{Round: state.Round, Pot: state.Pot}
	if open, ok := s.IsOpen(ctx, game); ok {
		out.Open = &open
	}
	if winner, ok := s.Winner(ctx, game); ok {
		out.Winner = &winner
	}
	return out, nil
}

// firstFailure returns the error of the first attempted candidate.
func firstFailure(ctx context.Context, res evmprobe.Resolution) error {
	for _, a := range res.Attempts {
		if a.Err != nil {
			return a.Err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &evmprobe.NoMatchingFunctionError{Capability: res.Capability, Attempts: res.Attempts}
}
