package auralend

import (
	"auralend/pkg/number"
)

const (
	// SecondsPerYear seconds per year
	SecondsPerYear int64 = 365 * 24 * 3600
	// BasisPointsPrecision basis points in 100%
	BasisPointsPrecision uint64 = 10_000
	// CompoundsPerYear daily compounding cadence used by interest accrual
	CompoundsPerYear uint64 = 365
	// MaxUtilizationBps utilization rate cap
	MaxUtilizationBps uint64 = 10_000
)

// UtilizationRate computes borrowed / (borrowed + available). Defined as
// zero when the pool is empty. Inputs above half the uint64 range are
// rejected so the sum cannot wrap.
func UtilizationRate(borrowed, available uint64) (number.Decimal, error) {
	if borrowed > ^uint64(0)/2 || available > ^uint64(0)/2 {
		return number.Zero(), number.ErrOverflow
	}

	total := borrowed + available
	if total == 0 {
		return number.Zero(), nil
	}

	b, err := number.FromInt(borrowed)
	if err != nil {
		return number.Zero(), err
	}
	t, err := number.FromInt(total)
	if err != nil {
		return number.Zero(), err
	}

	return b.Div(t)
}

// BorrowRate evaluates the kinked rate curve at the given utilization.
//
// Below the optimal point: base + utilization * multiplier.
// Above it: base + optimal * multiplier + excess * jumpMultiplier.
// Both branches agree exactly at utilization == optimal, so the curve is
// continuous and non-decreasing as long as the multipliers are non-negative.
func BorrowRate(utilization number.Decimal, baseBps, multiplierBps, jumpMultiplierBps, optimalBps uint64) (number.Decimal, error) {
	base := number.FromBps(baseBps)
	multiplier := number.FromBps(multiplierBps)
	optimal := number.FromBps(optimalBps)

	if utilization.LessThanOrEqual(optimal) {
		variable, err := utilization.Mul(multiplier)
		if err != nil {
			return number.Zero(), err
		}
		return base.Add(variable)
	}

	normal, err := optimal.Mul(multiplier)
	if err != nil {
		return number.Zero(), err
	}

	excess, err := utilization.Sub(optimal)
	if err != nil {
		return number.Zero(), err
	}

	jump, err := excess.Mul(number.FromBps(jumpMultiplierBps))
	if err != nil {
		return number.Zero(), err
	}

	rate, err := base.Add(normal)
	if err != nil {
		return number.Zero(), err
	}

	return rate.Add(jump)
}

// SupplyRate derives the supply-side rate from the borrow rate:
// borrowRate * utilization * (1 - protocolFee).
func SupplyRate(borrowRate, utilization number.Decimal, protocolFeeBps uint64) (number.Decimal, error) {
	feeComplement, err := number.One().Sub(number.FromBps(protocolFeeBps))
	if err != nil {
		return number.Zero(), err
	}

	rate, err := borrowRate.Mul(utilization)
	if err != nil {
		return number.Zero(), err
	}

	return rate.Mul(feeComplement)
}

// TimeFraction expresses elapsed sequences as a fraction of a year.
func TimeFraction(sequencesElapsed, sequencesPerYear uint64) (number.Decimal, error) {
	if sequencesPerYear == 0 {
		return number.Zero(), number.ErrDivisionByZero
	}

	elapsed, err := number.FromInt(sequencesElapsed)
	if err != nil {
		return number.Zero(), err
	}

	perYear, err := number.FromInt(sequencesPerYear)
	if err != nil {
		return number.Zero(), err
	}

	return elapsed.Div(perYear)
}
