package lending

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	coreerrors "lendcore/core/errors"
)

const (
	// Scale is the fixed-point unit: 1.0 is represented as 100_000_000.
	Scale int64 = 100_000_000
	// SecondsPerYear is the accrual year used by the interest engine.
	SecondsPerYear int64 = 31_536_000
	// PercentScale expresses collateral ratios as whole percentages.
	PercentScale int64 = 100
	// InfiniteRatio is reported for positions without debt.
	InfiniteRatio int64 = math.MaxInt64
)

var (
	maxInt64U  = uint256.NewInt(math.MaxInt64)
	scaleU     = uint256.NewInt(uint64(Scale))
	yearScaleU = new(uint256.Int).Mul(uint256.NewInt(uint64(SecondsPerYear)), scaleU)
)

// MulDiv returns a*b/d truncated toward zero using a 256-bit intermediate.
// Operands must be non-negative and the result must fit in an int64.
func MulDiv(a, b, d int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: negative operand %d*%d", a, b)
	}
	if d <= 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: non-positive divisor %d", d)
	}
	product := new(uint256.Int).Mul(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
	return quotient(product, uint256.NewInt(uint64(d)))
}

// MulScaled multiplies two scaled values: a*b/Scale.
func MulScaled(a, b int64) (int64, error) {
	return MulDiv(a, b, Scale)
}

// DivScaled divides two scaled values: a*Scale/b.
func DivScaled(a, b int64) (int64, error) {
	return MulDiv(a, Scale, b)
}

// interestFor computes principal*rate*elapsed/(SecondsPerYear*Scale).
func interestFor(principal, rate int64, elapsed uint64) (int64, error) {
	if principal <= 0 || rate <= 0 || elapsed == 0 {
		return 0, nil
	}
	product := new(uint256.Int).Mul(uint256.NewInt(uint64(principal)), uint256.NewInt(uint64(rate)))
	product.Mul(product, uint256.NewInt(elapsed))
	return quotient(product, yearScaleU)
}

func quotient(num, den *uint256.Int) (int64, error) {
	result := new(uint256.Int).Div(num, den)
	if result.Gt(maxInt64U) {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: fixed-point overflow")
	}
	return int64(result.Uint64()), nil
}

// CheckedAdd adds two non-negative amounts and rejects overflow.
func CheckedAdd(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: negative addend")
	}
	if a > math.MaxInt64-b {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: amount overflow")
	}
	return a + b, nil
}

// CheckedSub subtracts b from a and rejects negative results.
func CheckedSub(a, b int64) (int64, error) {
	if b < 0 {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: negative subtrahend")
	}
	if b > a {
		return 0, coreerrors.Wrap(coreerrors.ErrInvalidInput, "lending: amount underflow %d-%d", a, b)
	}
	return a - b, nil
}

func minInt64(values ...int64) int64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FormatScaled renders a 1e8 scaled integer as a decimal string, e.g.
// 150_000_000 becomes "1.5".
func FormatScaled(v int64) string {
	return decimal.New(v, -8).String()
}

// FormatPercent renders a 1e8 scaled rate as a percentage string, e.g.
// 2_000_000 becomes "2%".
func FormatPercent(v int64) string {
	return fmt.Sprintf("%s%%", decimal.New(v, -6).String())
}
