package oracle

import (
	"math/big"
	"time"

	"auralend/core"
	"auralend/pkg/number"
)

const maxQuoteExponent = 24

// Validator checks oracle quotes against freshness and confidence
// bounds before any of their numbers are trusted.
type Validator struct {
	cfg       *core.OracleConfig
	emergency bool
}

// NewValidator new quote validator. With emergency set, USD conversions
// accept the relaxed emergency bounds instead of the normal ones.
func NewValidator(cfg *core.OracleConfig, emergency bool) *Validator {
	return &Validator{cfg: cfg, emergency: emergency}
}

// Validate rejects quotes that are non-positive, stale, published in the
// future beyond a small grace window, or whose confidence interval is
// too wide relative to the price.
func (v *Validator) Validate(quote *core.PriceQuote, now time.Time) error {
	return v.validate(quote, now, v.cfg.ConfidenceBps, v.cfg.StalenessSeconds)
}

// ValidateEmergency relaxes the bounds for emergency mode: a much wider
// confidence interval and a staleness budget of hours instead of minutes.
func (v *Validator) ValidateEmergency(quote *core.PriceQuote, now time.Time) error {
	return v.validate(quote, now, v.cfg.EmergencyConfidence, v.cfg.EmergencySeconds)
}

func (v *Validator) validate(quote *core.PriceQuote, now time.Time, confidenceBps uint64, stalenessSeconds int64) error {
	if quote.Price <= 0 {
		return core.ErrPriceInvalid
	}

	if quote.Exponent > maxQuoteExponent || quote.Exponent < -maxQuoteExponent {
		return core.ErrPriceInvalid
	}

	age := now.Unix() - quote.PublishTime
	if age > stalenessSeconds {
		return core.ErrPriceStale
	}
	if age < -v.cfg.FutureGraceSeconds {
		return core.ErrPriceInvalid
	}

	// conf/price <= bps/10000, exponent cancels on both sides
	conf := new(big.Int).Mul(new(big.Int).SetUint64(quote.Confidence), big.NewInt(10_000))
	bound := new(big.Int).Mul(big.NewInt(quote.Price), new(big.Int).SetUint64(confidenceBps))
	if conf.Cmp(bound) > 0 {
		return core.ErrConfidenceTooWide
	}

	return nil
}

// ToUSDDecimal validates the quote with the wider USD-conversion
// confidence bound and normalizes it to a fixed-point price.
func (v *Validator) ToUSDDecimal(quote *core.PriceQuote, now time.Time) (number.Decimal, error) {
	confidenceBps, stalenessSeconds := v.cfg.UsdConfidenceBps, v.cfg.StalenessSeconds
	if v.emergency {
		confidenceBps, stalenessSeconds = v.cfg.EmergencyConfidence, v.cfg.EmergencySeconds
	}

	if err := v.validate(quote, now, confidenceBps, stalenessSeconds); err != nil {
		return number.Zero(), err
	}

	return normalize(quote.Price, quote.Exponent)
}

// USDValue prices an integer token amount in USD.
func (v *Validator) USDValue(amount uint64, quote *core.PriceQuote, decimals uint8, now time.Time) (number.Decimal, error) {
	price, err := v.ToUSDDecimal(quote, now)
	if err != nil {
		return number.Zero(), err
	}

	units, err := number.FromAmount(amount, decimals)
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	out, err := units.Mul(price)
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	return out, nil
}

// USDValueDecimal prices a fractional token amount in USD.
func (v *Validator) USDValueDecimal(amount number.Decimal, quote *core.PriceQuote, decimals uint8, now time.Time) (number.Decimal, error) {
	price, err := v.ToUSDDecimal(quote, now)
	if err != nil {
		return number.Zero(), err
	}

	divisor, err := number.FromInt(pow10(decimals))
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	units, err := amount.Div(divisor)
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	out, err := units.Mul(price)
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	return out, nil
}

// ValidateMovement is the circuit breaker between consecutive
// observations: a jump beyond the configured fraction of the previous
// price is refused rather than recorded.
func (v *Validator) ValidateMovement(previous, next number.Decimal) error {
	if v.cfg.MaxMovementBps == 0 || previous.IsZero() {
		return nil
	}

	var delta number.Decimal
	var err error
	if next.GreaterThan(previous) {
		delta, err = next.Sub(previous)
	} else {
		delta, err = previous.Sub(next)
	}
	if err != nil {
		return core.MathError(err)
	}

	bound, err := previous.Mul(number.FromBps(v.cfg.MaxMovementBps))
	if err != nil {
		return core.MathError(err)
	}

	if delta.GreaterThan(bound) {
		return core.ErrPriceInvalid
	}

	return nil
}

// normalize converts mantissa * 10^exponent into the fixed-point scale.
func normalize(price int64, exponent int32) (number.Decimal, error) {
	scaled := big.NewInt(price)
	shift := int(exponent) + number.Precision
	if shift >= 0 {
		scaled.Mul(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	} else {
		scaled.Quo(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil))
	}

	out, err := number.FromScaled(scaled)
	if err != nil {
		return number.Zero(), core.MathError(err)
	}

	return out, nil
}

func pow10(decimals uint8) uint64 {
	out := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		out *= 10
	}
	return out
}
