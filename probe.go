package evmprobe

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Caller performs a read-only contract call and returns the raw return data.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Submitter submits a state-changing call and returns the transaction hash.
type Submitter interface {
	Send(ctx context.Context, to common.Address, fn FunctionDescriptor, args ...any) (common.Hash, error)
}

// Outcome classifies a single candidate attempt.
type Outcome uint8

const (
	// OutcomeSkipped marks a candidate that was never tried.
	OutcomeSkipped Outcome = iota

	// OutcomeOK means the candidate transported and decoded successfully.
	OutcomeOK

	// OutcomeEncodeFailed means the arguments did not fit the candidate.
	OutcomeEncodeFailed

	// OutcomeTransportFailed means the node could not be reached.
	OutcomeTransportFailed

	// OutcomeRPCFailed means the node returned an error, e.g. a revert.
	OutcomeRPCFailed

	// OutcomeDecodeFailed means the return data did not match the outputs.
	OutcomeDecodeFailed

	// OutcomeSubmitFailed means a write candidate could not be submitted.
	OutcomeSubmitFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeSkipped:         "skipped",
	OutcomeOK:              "ok",
	OutcomeEncodeFailed:    "encode_failed",
	OutcomeTransportFailed: "transport_failed",
	OutcomeRPCFailed:       "rpc_failed",
	OutcomeDecodeFailed:    "decode_failed",
	OutcomeSubmitFailed:    "submit_failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Attempt records what happened when one candidate was tried.
type Attempt struct {
	Function FunctionDescriptor
	Outcome  Outcome
	Values   []any
	TxHash   common.Hash
	Err      error
}

// Resolution is the result of probing a read capability.
type Resolution struct {
	Capability string
	Attempts   []Attempt
	winner     int
}

// Found reports whether any candidate succeeded.
func (r Resolution) Found() bool {
	return r.winner >= 0
}

// Winner returns the descriptor that produced the value.
func (r Resolution) Winner() (FunctionDescriptor, bool) {
	if !r.Found() {
		return FunctionDescriptor{}, false
	}
	return r.Attempts[r.winner].Function, true
}

// Values returns the decoded outputs of the winning candidate.
func (r Resolution) Values() []any {
	if !r.Found() {
		return nil
	}
	return r.Attempts[r.winner].Values
}

// Uint returns the first output as an integer, or zero when no candidate
// matched.
func (r Resolution) Uint() *big.Int {
	if v, err := first(r.Values()); err == nil {
		if n, err := AsBigInt(v); err == nil {
			return n
		}
	}
	return new(big.Int)
}

// Bool returns the first output as a bool. ok is false when the value is unknown.
func (r Resolution) Bool() (value bool, ok bool) {
	v, err := first(r.Values())
	if err != nil {
		return false, false
	}
	b, err := AsBool(v)
	return b, err == nil
}

// Address returns the first output as an address. ok is false when the value is unknown.
func (r Resolution) Address() (value common.Address, ok bool) {
	v, err := first(r.Values())
	if err != nil {
		return common.Address{}, false
	}
	a, err := AsAddress(v)
	return a, err == nil
}

// Text returns the first output as a string. ok is false when the value is unknown.
func (r Resolution) Text() (value string, ok bool) {
	v, err := first(r.Values())
	if err != nil {
		return "", false
	}
	s, err := AsString(v)
	return s, err == nil
}

// Submission is the result of probing a write capability.
type Submission struct {
	Capability string
	Function   FunctionDescriptor
	TxHash     common.Hash
	Attempts   []Attempt
}

// Resolver tries the members of a CandidateSet in order until one works.
// Candidates are attempted sequentially, so identical node responses always
// select the same candidate.
type Resolver struct {
	caller    Caller
	submitter Submitter
	logger    *slog.Logger
	observe   func(capability string, outcome Outcome)
}

// NewResolver creates a resolver reading through caller.
func NewResolver(caller Caller, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		caller: caller,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve encodes, calls and decodes each candidate in order, passing args
// to every candidate. The first candidate that both transports and decodes
// wins and the rest are skipped. Individual failures are recorded on the
// Resolution, never returned.
func (r *Resolver) Resolve(ctx context.Context, to common.Address, set CandidateSet, args ...any) Resolution {
	res := Resolution{
		Capability: set.Capability,
		Attempts:   make([]Attempt, len(set.Candidates)),
		winner:     -1,
	}
	for i, fn := range set.Candidates {
		res.Attempts[i] = Attempt{Function: fn, Outcome: OutcomeSkipped}
	}

	for i, fn := range set.Candidates {
		if ctx.Err() != nil {
			break
		}
		attempt := r.try(ctx, to, fn, args)
		res.Attempts[i] = attempt
		r.logger.Debug("probe attempt",
			"capability", set.Capability,
			"function", fn.Signature(),
			"outcome", attempt.Outcome.String(),
			"error", attempt.Err,
		)
		if attempt.Outcome == OutcomeOK {
			res.winner = i
			break
		}
	}

	r.report(set.Capability, res)
	return res
}

func (r *Resolver) try(ctx context.Context, to common.Address, fn FunctionDescriptor, args []any) Attempt {
	data, err := Encode(fn, args...)
	if err != nil {
		return Attempt{Function: fn, Outcome: OutcomeEncodeFailed, Err: err}
	}

	ret, err := r.caller.CallContract(ctx, to, data)
	if err != nil {
		return Attempt{Function: fn, Outcome: classify(err), Err: err}
	}

	values, err := Decode(fn, ret)
	if err != nil {
		return Attempt{Function: fn, Outcome: OutcomeDecodeFailed, Err: err}
	}
	return Attempt{Function: fn, Outcome: OutcomeOK, Values: values}
}

// Transact submits each write candidate in order through the configured
// Submitter. The first accepted submission wins. When every candidate
// fails the result is a *NoMatchingFunctionError: an action has no safe
// default. A failure that is neither an encoding error nor a node
// rejection stops the probe and is returned unchanged, since the
// transaction may already be pending.
func (r *Resolver) Transact(ctx context.Context, to common.Address, set CandidateSet, args ...any) (Submission, error) {
	sub := Submission{Capability: set.Capability}
	if len(set.Candidates) == 0 {
		return sub, ErrEmptyCandidateSet
	}
	if r.submitter == nil {
		return sub, errors.New("evmprobe: resolver has no submitter")
	}

	for _, fn := range set.Candidates {
		if err := ctx.Err(); err != nil {
			return sub, err
		}
		hash, err := r.submitter.Send(ctx, to, fn, args...)
		if err != nil {
			outcome := submitOutcome(err)
			sub.Attempts = append(sub.Attempts, Attempt{Function: fn, Outcome: outcome, Err: err})
			r.logger.Debug("probe submit attempt",
				"capability", set.Capability,
				"function", fn.Signature(),
				"outcome", outcome.String(),
				"error", err,
			)
			if outcome == OutcomeTransportFailed {
				r.notify(set.Capability, outcome)
				return sub, err
			}
			continue
		}
		sub.Attempts = append(sub.Attempts, Attempt{Function: fn, Outcome: OutcomeOK, TxHash: hash})
		sub.Function = fn
		sub.TxHash = hash
		r.notify(set.Capability, OutcomeOK)
		return sub, nil
	}

	r.notify(set.Capability, OutcomeSubmitFailed)
	return sub, &NoMatchingFunctionError{Capability: set.Capability, Attempts: sub.Attempts}
}

func (r *Resolver) report(capability string, res Resolution) {
	if res.Found() {
		r.notify(capability, OutcomeOK)
		return
	}
	last := OutcomeSkipped
	for _, a := range res.Attempts {
		if a.Outcome != OutcomeSkipped {
			last = a.Outcome
		}
	}
	r.notify(capability, last)
}

func (r *Resolver) notify(capability string, outcome Outcome) {
	if r.observe != nil {
		r.observe(capability, outcome)
	}
}

// submitOutcome maps a Submitter error to its attempt outcome. Only
// encoding failures and node rejections allow the next candidate.
func submitOutcome(err error) Outcome {
	var (
		encErr *EncodingError
		subErr *SubmissionError
		rpcErr *RPCError
	)
	switch {
	case errors.As(err, &encErr):
		return OutcomeEncodeFailed
	case errors.As(err, &subErr), errors.As(err, &rpcErr):
		return OutcomeSubmitFailed
	}
	return OutcomeTransportFailed
}

// classify maps a call error to its attempt outcome.
func classify(err error) Outcome {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return OutcomeRPCFailed
	}
	return OutcomeTransportFailed
}
