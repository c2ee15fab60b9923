package evmprobe

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSelectors(t *testing.T) {
	tests := []struct {
		fn       FunctionDescriptor
		sig      string
		selector string
	}{
		{ERC20["transfer"], "transfer(address,uint256)", "a9059cbb"},
		{ERC20["balanceOf"], "balanceOf(address)", "70a08231"},
		{ERC20["decimals"], "decimals()", "313ce567"},
		{ERC20["approve"], "approve(address,uint256)", "095ea7b3"},
		{ERC20["allowance"], "allowance(address,address)", "dd62ed3e"},
		{ERC20["transferFrom"], "transferFrom(address,address,uint256)", "23b872dd"},
		{MustFunction("totalSupply", nil, []string{TypeUint256}), "totalSupply()", "18160ddd"},
	}

	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			if got := tt.fn.Signature(); got != tt.sig {
				t.Errorf("Expected signature %q, got %q", tt.sig, got)
			}
			sel := tt.fn.Selector()
			if got := hex.EncodeToString(sel[:]); got != tt.selector {
				t.Errorf("Expected selector %s, got %s", tt.selector, got)
			}
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")

	data, err := Encode(ERC20["transfer"], to, big.NewInt(1))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := "a9059cbb" +
		strings.Repeat("0", 63) + "1" +
		strings.Repeat("0", 63) + "1"
	if got := hex.EncodeToString(data); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tags := []string{TypeUint256, TypeAddress, TypeBool, TypeUint8, TypeString}
	echo := MustFunction("echo", tags, tags)

	amount, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	data, err := Encode(echo, amount, addr, true, uint8(18), "Tether USD")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	sel := echo.Selector()
	if !bytes.Equal(data[:4], sel[:]) {
		t.Fatalf("Expected selector prefix %x, got %x", sel, data[:4])
	}

	values, err := Decode(echo, data[4:])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(values) != len(tags) {
		t.Fatalf("Expected %d values, got %d", len(tags), len(values))
	}

	if n, err := AsBigInt(values[0]); err != nil || n.Cmp(amount) != 0 {
		t.Errorf("uint256: got %v (%v)", values[0], err)
	}
	if a, err := AsAddress(values[1]); err != nil || a != addr {
		t.Errorf("address: got %v (%v)", values[1], err)
	}
	if b, err := AsBool(values[2]); err != nil || !b {
		t.Errorf("bool: got %v (%v)", values[2], err)
	}
	if d, err := AsUint8(values[3]); err != nil || d != 18 {
		t.Errorf("uint8: got %v (%v)", values[3], err)
	}
	if s, err := AsString(values[4]); err != nil || s != "Tether USD" {
		t.Errorf("string: got %v (%v)", values[4], err)
	}
}

func TestEncodeAcceptedIntegers(t *testing.T) {
	fn := MustFunction("submit", []string{TypeUint256}, nil)
	want, err := Encode(fn, big.NewInt(42))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for _, v := range []any{42, int32(42), int64(42), uint64(42), uint32(42), uint8(42), uint(42), "42", "0x2a", " 42 "} {
		got, err := Encode(fn, v)
		if err != nil {
			t.Errorf("Encode(%T %v) failed: %v", v, v, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Encode(%T %v) = %x, want %x", v, v, got, want)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	setDecimals := MustFunction("setDecimals", []string{TypeUint8}, nil)
	overflow := new(big.Int).Lsh(big.NewInt(1), 256)

	tests := []struct {
		name    string
		fn      FunctionDescriptor
		args    []any
		wantErr error
		index   int
	}{
		{"too few args", ERC20["transfer"], []any{common.Address{}}, ErrArityMismatch, -1},
		{"too many args", ERC20["decimals"], []any{1}, ErrArityMismatch, -1},
		{"int for address", ERC20["balanceOf"], []any{12}, ErrTypeMismatch, 0},
		{"short address", ERC20["balanceOf"], []any{"0x1234"}, ErrTypeMismatch, 0},
		{"negative uint256", SubmitGuess, []any{big.NewInt(-1)}, ErrValueOutOfRange, 0},
		{"negative int", SubmitGuess, []any{-5}, ErrValueOutOfRange, 0},
		{"uint256 overflow", SubmitGuess, []any{overflow}, ErrValueOutOfRange, 0},
		{"uint8 overflow", setDecimals, []any{256}, ErrValueOutOfRange, 0},
		{"string for uint", SubmitGuess, []any{"twelve"}, ErrTypeMismatch, 0},
		{"nil big.Int", SubmitGuess, []any{(*big.Int)(nil)}, ErrTypeMismatch, 0},
		{"bool for uint", SubmitGuess, []any{true}, ErrTypeMismatch, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.fn, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			var encErr *EncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("Expected *EncodingError, got %T", err)
			}
			if encErr.Index != tt.index {
				t.Errorf("Expected index %d, got %d", tt.index, encErr.Index)
			}
			if encErr.Function != tt.fn.Name() {
				t.Errorf("Expected function %q, got %q", tt.fn.Name(), encErr.Function)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	word := func(last byte) []byte {
		w := make([]byte, 32)
		w[31] = last
		return w
	}

	tests := []struct {
		name string
		fn   FunctionDescriptor
		data []byte
	}{
		{"empty for uint256", MustFunction("totalSupply", nil, []string{TypeUint256}), nil},
		{"short word", ERC20["decimals"], make([]byte, 31)},
		{"extra word", ERC20["decimals"], append(word(18), word(0)...)},
		{"data for no outputs", SubmitGuess, word(1)},
		{"bad bool", RoundOpen.Candidates[0], word(2)},
		{"short string head", ERC20["name"], nil},
		{"unaligned string", ERC20["name"], make([]byte, 70)},
		{"uint8 high bits", ERC20["decimals"], common.LeftPadBytes([]byte{1, 0}, 32)},
		{"invalid utf-8 string", ERC20["name"], stringReturn([]byte{0xff, 0xfe})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.fn, tt.data)
			var decErr *DecodingError
			if !errors.As(err, &decErr) {
				t.Fatalf("Expected *DecodingError, got %v", err)
			}
			if decErr.Length != len(tt.data) {
				t.Errorf("Expected length %d, got %d", len(tt.data), decErr.Length)
			}
		})
	}
}

func TestDecodeNoOutputs(t *testing.T) {
	values, err := Decode(SubmitGuess, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("Expected no values, got %v", values)
	}
}

func TestNewFunction(t *testing.T) {
	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewFunction("f", []string{"int256"}, nil)
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := NewFunction("", nil, nil); err == nil {
			t.Error("Expected error for empty name")
		}
	})

	t.Run("string form", func(t *testing.T) {
		got := ERC20["balanceOf"].String()
		want := "balanceOf(address) returns (uint256)"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
		if got := SubmitGuess.String(); got != "submit(uint256)" {
			t.Errorf("Expected submit(uint256), got %q", got)
		}
	})

	t.Run("must panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic")
			}
		}()
		MustFunction("f", []string{"bytes32"}, nil)
	})
}

// stringReturn ABI-encodes a single string output from raw bytes.
func stringReturn(b []byte) []byte {
	out := make([]byte, 0, 96)
	out = append(out, common.LeftPadBytes([]byte{0x20}, 32)...)
	out = append(out, common.LeftPadBytes([]byte{byte(len(b))}, 32)...)
	return append(out, common.RightPadBytes(b, 32)...)
}

func TestDecodeValidUTF8String(t *testing.T) {
	values, err := Decode(ERC20["name"], stringReturn([]byte("Tökén")))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if values[0] != "Tökén" {
		t.Errorf("Expected Tökén, got %v", values[0])
	}
}
