package evmprobe

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

var testGame = common.HexToAddress("0x428dc0f4f806054CE70b26F1bB6a186317644123")

type reply struct {
	data []byte
	err  error
}

// fakeCaller answers by selector and reverts on anything unknown.
type fakeCaller struct {
	replies map[[4]byte]reply
	calls   []string
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{replies: make(map[[4]byte]reply)}
}

func (f *fakeCaller) on(fn FunctionDescriptor, data []byte, err error) {
	f.replies[fn.Selector()] = reply{data: data, err: err}
}

func (f *fakeCaller) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var sel [4]byte
	copy(sel[:], data)
	f.calls = append(f.calls, common.Bytes2Hex(sel[:]))
	r, ok := f.replies[sel]
	if !ok {
		return nil, &RPCError{Method: "eth_call", Code: 3, Message: "execution reverted"}
	}
	return r.data, r.err
}

func uintWord(n int64) []byte {
	return math.U256Bytes(big.NewInt(n))
}

func boolWord(b bool) []byte {
	if b {
		return uintWord(1)
	}
	return uintWord(0)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func TestResolveFirstWorkingCandidateWins(t *testing.T) {
	set := NewCandidateSet("pot",
		MustFunction("a", nil, []string{TypeUint256}),
		MustFunction("b", nil, []string{TypeUint256}),
		MustFunction("c", nil, []string{TypeUint256}),
	)
	caller := newFakeCaller()
	caller.on(set.Candidates[1], uintWord(777), nil)
	caller.on(set.Candidates[2], uintWord(999), nil)

	res := NewResolver(caller).Resolve(context.Background(), testGame, set)

	if !res.Found() {
		t.Fatal("Expected a match")
	}
	if got := res.Uint(); got.Int64() != 777 {
		t.Errorf("Expected 777, got %s", got)
	}
	winner, _ := res.Winner()
	if winner.Name() != "b" {
		t.Errorf("Expected winner b, got %s", winner.Name())
	}
	if len(caller.calls) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(caller.calls))
	}

	wantOutcomes := []Outcome{OutcomeRPCFailed, OutcomeOK, OutcomeSkipped}
	for i, want := range wantOutcomes {
		if res.Attempts[i].Outcome != want {
			t.Errorf("Attempt %d: expected %s, got %s", i, want, res.Attempts[i].Outcome)
		}
	}
}

func TestResolveFallbacks(t *testing.T) {
	caller := newFakeCaller()
	r := NewResolver(caller)
	ctx := context.Background()

	pot := r.Resolve(ctx, testGame, PotDirect)
	if pot.Found() {
		t.Error("Expected no match")
	}
	if pot.Uint().Sign() != 0 {
		t.Errorf("Expected zero fallback, got %s", pot.Uint())
	}

	open := r.Resolve(ctx, testGame, RoundOpen)
	if _, ok := open.Bool(); ok {
		t.Error("Expected unknown open state")
	}

	winner := r.Resolve(ctx, testGame, WinnerDirect)
	if _, ok := winner.Address(); ok {
		t.Error("Expected unknown winner")
	}

	if len(caller.calls) != len(PotDirect.Candidates)+len(RoundOpen.Candidates)+len(WinnerDirect.Candidates) {
		t.Errorf("Expected every candidate to be tried once, got %d calls", len(caller.calls))
	}
}

func TestResolveClassifiesFailures(t *testing.T) {
	set := NewCandidateSet("open",
		MustFunction("isOpen", nil, []string{TypeBool}),
		MustFunction("isActive", nil, []string{TypeBool}),
		MustFunction("open", nil, []string{TypeBool}),
		MustFunction("isRunning", nil, []string{TypeBool}),
	)
	caller := newFakeCaller()
	caller.on(set.Candidates[0], nil, &TransportError{Method: "eth_call", Err: errors.New("dial tcp: refused")})
	caller.on(set.Candidates[1], uintWord(1)[:16], nil)
	caller.on(set.Candidates[2], uintWord(7), nil)
	caller.on(set.Candidates[3], boolWord(true), nil)

	res := NewResolver(caller).Resolve(context.Background(), testGame, set)

	want := []Outcome{OutcomeTransportFailed, OutcomeDecodeFailed, OutcomeDecodeFailed, OutcomeOK}
	for i, w := range want {
		if res.Attempts[i].Outcome != w {
			t.Errorf("Attempt %d: expected %s, got %s", i, w, res.Attempts[i].Outcome)
		}
	}
	if v, ok := res.Bool(); !ok || !v {
		t.Errorf("Expected (true, true), got (%v, %v)", v, ok)
	}
}

func TestResolveWithArguments(t *testing.T) {
	caller := newFakeCaller()
	caller.on(PotByRound.Candidates[2], uintWord(5), nil)

	res := NewResolver(caller).Resolve(context.Background(), testGame, PotByRound, big.NewInt(3))
	winner, ok := res.Winner()
	if !ok || winner.Name() != "potOf" {
		t.Fatalf("Expected potOf, got %v", winner)
	}
	if res.Uint().Int64() != 5 {
		t.Errorf("Expected 5, got %s", res.Uint())
	}
}

func TestResolveEncodeFailureSkipsCall(t *testing.T) {
	caller := newFakeCaller()
	res := NewResolver(caller).Resolve(context.Background(), testGame, PotByRound)

	if res.Found() {
		t.Fatal("Expected no match without the round argument")
	}
	if len(caller.calls) != 0 {
		t.Errorf("Expected no calls, got %v", caller.calls)
	}
	for i, a := range res.Attempts {
		if a.Outcome != OutcomeEncodeFailed {
			t.Errorf("Attempt %d: expected encode_failed, got %s", i, a.Outcome)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	winnerAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	caller := newFakeCaller()
	caller.on(WinnerDirect.Candidates[1], addressWord(winnerAddr), nil)
	caller.on(WinnerDirect.Candidates[2], addressWord(common.HexToAddress("0xbb")), nil)
	r := NewResolver(caller)

	for i := 0; i < 10; i++ {
		res := r.Resolve(context.Background(), testGame, WinnerDirect)
		got, ok := res.Address()
		if !ok || got != winnerAddr {
			t.Fatalf("Run %d: expected %s, got %s (%v)", i, winnerAddr.Hex(), got.Hex(), ok)
		}
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	caller := newFakeCaller()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewResolver(caller).Resolve(ctx, testGame, StartRound)
	if len(caller.calls) != 0 {
		t.Errorf("Expected no calls, got %d", len(caller.calls))
	}
	for _, a := range res.Attempts {
		if a.Outcome != OutcomeSkipped {
			t.Errorf("Expected skipped, got %s", a.Outcome)
		}
	}
}

func TestResolveObserver(t *testing.T) {
	caller := newFakeCaller()
	caller.on(CurrentRound.Candidates[0], uintWord(4), nil)

	var seen []string
	r := NewResolver(caller, WithObserver(func(capability string, outcome Outcome) {
		seen = append(seen, capability+":"+outcome.String())
	}))
	r.Resolve(context.Background(), testGame, CurrentRound)
	r.Resolve(context.Background(), testGame, PotDirect)

	want := []string{"current_round:ok", "pot:rpc_failed"}
	if len(seen) != len(want) {
		t.Fatalf("Expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Expected %s, got %s", want[i], seen[i])
		}
	}
}

// fakeSubmitter accepts only the named functions. Sending lost fails at
// the transport level.
type fakeSubmitter struct {
	accept map[string]bool
	lost   string
	sent   []string
}

func (f *fakeSubmitter) Send(ctx context.Context, to common.Address, fn FunctionDescriptor, args ...any) (common.Hash, error) {
	if _, err := Encode(fn, args...); err != nil {
		return common.Hash{}, err
	}
	f.sent = append(f.sent, fn.Name())
	if fn.Name() == f.lost {
		return common.Hash{}, &TransportError{Method: "eth_sendRawTransaction", Err: context.DeadlineExceeded}
	}
	if !f.accept[fn.Name()] {
		return common.Hash{}, &SubmissionError{Nonce: uint64(len(f.sent)), Err: errors.New("execution reverted")}
	}
	return common.BytesToHash([]byte(fn.Name())), nil
}

func TestTransact(t *testing.T) {
	t.Run("first accepted wins", func(t *testing.T) {
		sub := &fakeSubmitter{accept: map[string]bool{"newRound": true, "openRound": true}}
		r := NewResolver(newFakeCaller(), WithSubmitter(sub))

		res, err := r.Transact(context.Background(), testGame, StartRound)
		if err != nil {
			t.Fatalf("Transact failed: %v", err)
		}
		if res.Function.Name() != "newRound" {
			t.Errorf("Expected newRound, got %s", res.Function.Name())
		}
		if res.TxHash != common.BytesToHash([]byte("newRound")) {
			t.Errorf("Unexpected hash %s", res.TxHash.Hex())
		}
		if len(sub.sent) != 3 {
			t.Errorf("Expected 3 submissions, got %v", sub.sent)
		}
	})

	t.Run("all fail", func(t *testing.T) {
		sub := &fakeSubmitter{}
		r := NewResolver(newFakeCaller(), WithSubmitter(sub))

		_, err := r.Transact(context.Background(), testGame, StartRound)
		var nm *NoMatchingFunctionError
		if !errors.As(err, &nm) {
			t.Fatalf("Expected *NoMatchingFunctionError, got %v", err)
		}
		if nm.Capability != "start_round" || len(nm.Attempts) != len(StartRound.Candidates) {
			t.Errorf("Unexpected error fields: %+v", nm)
		}
		var subErr *SubmissionError
		if !errors.As(err, &subErr) {
			t.Error("Expected wrapped *SubmissionError")
		}
	})

	t.Run("transport failure stops", func(t *testing.T) {
		sub := &fakeSubmitter{lost: "startNextRound", accept: map[string]bool{"newRound": true}}
		var outcomes []string
		r := NewResolver(newFakeCaller(), WithSubmitter(sub), WithObserver(func(c string, o Outcome) {
			outcomes = append(outcomes, o.String())
		}))

		res, err := r.Transact(context.Background(), testGame, StartRound)
		var transport *TransportError
		if !errors.As(err, &transport) {
			t.Fatalf("Expected *TransportError, got %v", err)
		}
		var nm *NoMatchingFunctionError
		if errors.As(err, &nm) {
			t.Error("Transport failure must not be reported as no matching function")
		}
		if len(sub.sent) != 2 {
			t.Errorf("Expected no submission after the lost one, got %v", sub.sent)
		}
		if len(res.Attempts) != 2 || res.Attempts[1].Outcome != OutcomeTransportFailed {
			t.Errorf("Unexpected attempts: %+v", res.Attempts)
		}
		if len(outcomes) != 1 || outcomes[0] != "transport_failed" {
			t.Errorf("Unexpected observed outcomes %v", outcomes)
		}
	})

	t.Run("encode failure", func(t *testing.T) {
		sub := &fakeSubmitter{accept: map[string]bool{"submit": true}}
		r := NewResolver(newFakeCaller(), WithSubmitter(sub))

		_, err := r.Transact(context.Background(), testGame, NewCandidateSet("submit", SubmitGuess), "not a number")
		var nm *NoMatchingFunctionError
		if !errors.As(err, &nm) {
			t.Fatalf("Expected *NoMatchingFunctionError, got %v", err)
		}
		if nm.Attempts[0].Outcome != OutcomeEncodeFailed {
			t.Errorf("Expected encode_failed, got %s", nm.Attempts[0].Outcome)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		r := NewResolver(newFakeCaller(), WithSubmitter(&fakeSubmitter{}))
		if _, err := r.Transact(context.Background(), testGame, CandidateSet{}); !errors.Is(err, ErrEmptyCandidateSet) {
			t.Errorf("Expected ErrEmptyCandidateSet, got %v", err)
		}
	})

	t.Run("no submitter", func(t *testing.T) {
		if _, err := NewResolver(newFakeCaller()).Transact(context.Background(), testGame, StartRound); err == nil {
			t.Error("Expected error without submitter")
		}
	})
}
