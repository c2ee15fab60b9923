package evmprobe

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Accessors for values returned by Decode. Each returns ErrTypeMismatch
// (wrapped) when the decoded value has a different Go type.

// AsBigInt returns an integer output as *big.Int. uint8 outputs are widened.
func AsBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrTypeMismatch)
		}
		return new(big.Int).Set(n), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	}
	return nil, fmt.Errorf("%w: expected integer, got %T", ErrTypeMismatch, v)
}

// AsUint8 returns a uint8 output.
func AsUint8(v any) (uint8, error) {
	if n, ok := v.(uint8); ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected uint8, got %T", ErrTypeMismatch, v)
}

// AsBool returns a bool output.
func AsBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: expected bool, got %T", ErrTypeMismatch, v)
}

// AsAddress returns an address output.
func AsAddress(v any) (common.Address, error) {
	if a, ok := v.(common.Address); ok {
		return a, nil
	}
	return common.Address{}, fmt.Errorf("%w: expected address, got %T", ErrTypeMismatch, v)
}

// AsString returns a string output.
func AsString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: expected string, got %T", ErrTypeMismatch, v)
}

// first returns the first decoded value or an error for empty output lists.
func first(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrShortData)
	}
	return values[0], nil
}
