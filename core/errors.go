package core

import (
	"strconv"

	"auralend/pkg/number"
)

// ErrorCode int
type ErrorCode int

const (
	// ErrUnknown unknown
	ErrUnknown ErrorCode = 100000
	// ErrOperationDisabled the reserve capability is switched off
	ErrOperationDisabled ErrorCode = 100001

	// ErrMathOverflow math operation overflow
	ErrMathOverflow ErrorCode = 100100
	// ErrMathUnderflow math operation underflow
	ErrMathUnderflow ErrorCode = 100101
	// ErrDivisionByZero division by zero
	ErrDivisionByZero ErrorCode = 100102

	// ErrInsufficientLiquidity requested liquidity exceeds available
	ErrInsufficientLiquidity ErrorCode = 100200
	// ErrInsufficientCollateral seized collateral exceeds deposited
	ErrInsufficientCollateral ErrorCode = 100201
	// ErrAmountTooSmall amount below the dust minimum
	ErrAmountTooSmall ErrorCode = 100202
	// ErrAmountTooLarge amount above the permitted maximum
	ErrAmountTooLarge ErrorCode = 100203
	// ErrInvalidAmount invalid amount
	ErrInvalidAmount ErrorCode = 100204

	// ErrPriceStale price quote older than the staleness budget
	ErrPriceStale ErrorCode = 100300
	// ErrPriceInvalid non-positive, extreme or future-dated price
	ErrPriceInvalid ErrorCode = 100301
	// ErrConfidenceTooWide confidence interval too wide relative to price
	ErrConfidenceTooWide ErrorCode = 100302
	// ErrFeedMismatch quote feed does not match the reserve's feed
	ErrFeedMismatch ErrorCode = 100303

	// ErrOperationInProgress reserve reentrancy lock already held
	ErrOperationInProgress ErrorCode = 100400
	// ErrInvalidUnlock unlock of a reserve that is not locked
	ErrInvalidUnlock ErrorCode = 100401
	// ErrObligationUnhealthy operation would leave the obligation unhealthy
	ErrObligationUnhealthy ErrorCode = 100402
	// ErrObligationHealthy liquidation attempted on a healthy obligation
	ErrObligationHealthy ErrorCode = 100403
	// ErrReserveNotFound no reserve
	ErrReserveNotFound ErrorCode = 100404
	// ErrObligationNotFound no obligation
	ErrObligationNotFound ErrorCode = 100405
	// ErrDepositsMaxed obligation collateral positions are full
	ErrDepositsMaxed ErrorCode = 100406
	// ErrBorrowsMaxed obligation debt positions are full
	ErrBorrowsMaxed ErrorCode = 100407
	// ErrLoanToValueExceeded borrow would breach the buffered LTV ceiling
	ErrLoanToValueExceeded ErrorCode = 100408
	// ErrObligationStale obligation must be refreshed first
	ErrObligationStale ErrorCode = 100409
	// ErrCollateralDisabled reserve cannot back collateral
	ErrCollateralDisabled ErrorCode = 100410
	// ErrInvalidReserveConfig reserve configuration rejected
	ErrInvalidReserveConfig ErrorCode = 100411
	// ErrObligationCollateralEmpty obligation has no collateral
	ErrObligationCollateralEmpty ErrorCode = 100412
	// ErrPositionNotFound obligation holds no position for the reserve
	ErrPositionNotFound ErrorCode = 100413
)

func (e ErrorCode) String() string {
	return strconv.Itoa(int(e))
}

func (e ErrorCode) Error() string {
	return e.String()
}

// MathError maps a pkg/number sentinel to its typed code.
func MathError(err error) ErrorCode {
	switch err {
	case number.ErrOverflow:
		return ErrMathOverflow
	case number.ErrUnderflow:
		return ErrMathUnderflow
	case number.ErrDivisionByZero:
		return ErrDivisionByZero
	default:
		return ErrUnknown
	}
}
