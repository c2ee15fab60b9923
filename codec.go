package evmprobe

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// wordSize is the ABI slot width in bytes.
const wordSize = 32

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Encode produces call-data for fn: the 4-byte selector followed by the
// ABI encoding of args.
//
// Integer arguments accept *big.Int, the Go integer kinds int, int32,
// int64, uint, uint8, uint32 and uint64, and integer strings in decimal or
// 0x-prefixed hex ("42", "0x2a"). Negative or oversized values are rejected
// rather than truncated. Address arguments accept common.Address,
// *common.Address or a 0x-prefixed hex string.
func Encode(fn FunctionDescriptor, args ...any) ([]byte, error) {
	if len(args) != len(fn.inputs) {
		return nil, &EncodingError{
			Function: fn.name,
			Index:    -1,
			Err:      fmt.Errorf("%w: want %d, got %d", ErrArityMismatch, len(fn.inputs), len(args)),
		}
	}

	converted := make([]any, len(args))
	for i, arg := range args {
		v, err := toABIValue(arg, fn.inputs[i].Type)
		if err != nil {
			return nil, &EncodingError{Function: fn.name, Index: i, Err: err}
		}
		converted[i] = v
	}

	packed, err := fn.inputs.Pack(converted...)
	if err != nil {
		return nil, &EncodingError{Function: fn.name, Index: -1, Err: err}
	}

	data := make([]byte, 0, len(fn.id)+len(packed))
	data = append(data, fn.id[:]...)
	return append(data, packed...), nil
}

// Decode unpacks data returned by a call to fn into one Go value per
// output: *big.Int for uint256, uint8, common.Address, bool and string.
// String outputs must be valid UTF-8.
func Decode(fn FunctionDescriptor, data []byte) ([]any, error) {
	if len(fn.outputs) == 0 {
		if len(data) != 0 {
			return nil, &DecodingError{Function: fn.name, Length: len(data), Err: ErrShortData}
		}
		return []any{}, nil
	}

	head := wordSize * len(fn.outputs)
	switch {
	case fn.hasDynamicOutputs() && len(data) < head:
		return nil, &DecodingError{Function: fn.name, Length: len(data), Err: ErrShortData}
	case !fn.hasDynamicOutputs() && len(data) != head:
		return nil, &DecodingError{Function: fn.name, Length: len(data), Err: ErrShortData}
	case len(data)%wordSize != 0:
		return nil, &DecodingError{Function: fn.name, Length: len(data), Err: ErrShortData}
	}

	values, err := fn.outputs.Unpack(data)
	if err != nil {
		return nil, &DecodingError{Function: fn.name, Length: len(data), Err: err}
	}
	for i, v := range values {
		if s, ok := v.(string); ok && !utf8.ValidString(s) {
			return nil, &DecodingError{
				Function: fn.name,
				Length:   len(data),
				Err:      fmt.Errorf("%w: output %d is not valid UTF-8", ErrTypeMismatch, i),
			}
		}
	}
	return values, nil
}

// toABIValue converts a Go value into the exact type abi.Arguments.Pack expects.
func toABIValue(v any, t abi.Type) (any, error) {
	switch t.T {
	case abi.UintTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("%w: %s is negative", ErrValueOutOfRange, n)
		}
		if t.Size == 8 {
			if n.Cmp(big.NewInt(math.MaxUint8)) > 0 {
				return nil, fmt.Errorf("%w: %s exceeds uint8", ErrValueOutOfRange, n)
			}
			return uint8(n.Uint64()), nil
		}
		if n.Cmp(maxUint256) > 0 {
			return nil, fmt.Errorf("%w: %s exceeds uint256", ErrValueOutOfRange, n)
		}
		return n, nil

	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case *common.Address:
			if a == nil {
				return nil, fmt.Errorf("%w: nil address", ErrTypeMismatch)
			}
			return *a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("%w: %q is not a hex address", ErrTypeMismatch, a)
			}
			return common.HexToAddress(a), nil
		}

	case abi.BoolTy:
		if b, ok := v.(bool); ok {
			return b, nil
		}

	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.String())
	}
	return nil, fmt.Errorf("%w: expected %s, got %T", ErrTypeMismatch, t.String(), v)
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrTypeMismatch)
		}
		return new(big.Int).Set(n), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case string:
		parsed, ok := new(big.Int).SetString(strings.TrimSpace(n), 0)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, n)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("%w: expected integer, got %T", ErrTypeMismatch, v)
}
