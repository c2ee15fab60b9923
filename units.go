package evmprobe

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// EtherDecimals is the decimal count of the native currency (wei per ether).
const EtherDecimals = 18

var plainDecimal = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// ToRaw scales a human-readable amount to raw integer units:
// human * 10^decimals. The result must be exact; amounts with more
// fractional digits than decimals allows fail with *PrecisionError.
func ToRaw(human *big.Rat, decimals uint8) (*big.Int, error) {
	if human.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	scaled := new(big.Rat).Mul(human, new(big.Rat).SetInt(pow10(decimals)))
	if !scaled.IsInt() {
		return nil, &PrecisionError{Amount: formatRat(human), Decimals: decimals}
	}
	return new(big.Int).Set(scaled.Num()), nil
}

// ToHuman scales raw integer units down by 10^decimals. It is exact.
func ToHuman(raw *big.Int, decimals uint8) *big.Rat {
	return new(big.Rat).SetFrac(raw, pow10(decimals))
}

// ParseAmount parses a plain decimal string such as "12.5" or "0.001".
// Exponents and fractions are not accepted.
func ParseAmount(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if !plainDecimal.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a decimal amount", ErrTypeMismatch, s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal amount", ErrTypeMismatch, s)
	}
	return r, nil
}

// FormatAmount renders raw units as a plain decimal string with
// insignificant trailing zeros removed.
func FormatAmount(raw *big.Int, decimals uint8) string {
	return trimZeros(ToHuman(raw, decimals).FloatString(int(decimals)))
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// formatRat renders r exactly when it has a terminating decimal expansion.
func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// Denominators of parsed decimals are powers of ten; 80 digits covers uint256.
	s := trimZeros(r.FloatString(80))
	if back, ok := new(big.Rat).SetString(s); ok && back.Cmp(r) == 0 {
		return s
	}
	return r.RatString()
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
