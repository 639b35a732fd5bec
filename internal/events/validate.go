package events

import (
	"math"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/money"
)

// Numeric caps from spec.md §4.7/§6.
const (
	MaxPrice          = money.Amount(100_000_000_00)
	MaxLoanAmount     = money.Amount(50_000_000_00)
	MaxMonthlyPayment = money.Amount(10_000_000_00)
	MinInterestRate   = 0.0
	MaxInterestRate   = 0.50
	MinTermMonths     = 1
	MaxTermMonths     = 30 * 12

	MaxConfigurations = 100
	MaxCollateral     = 50
)

// checkOwnership is every handler's mandatory first validation: the
// connection's bound farm must equal the farmId the request references.
func checkOwnership(host hostapi.HostGameApi, connID string, farmID domain.FarmId) *Error {
	owner, ok := host.ConnectionFarmID(connID)
	if !ok || owner != farmID {
		return newErr(Unauthorized, "error.unauthorized", connID)
	}
	return nil
}

// checkFloat rejects NaN/±Inf (spec.md §4.7.2).
func checkFloat(name string, v float64) *Error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newErr(InvalidParameter, "error.invalid_number", name)
	}
	return nil
}

// checkPrice bounds a money amount by [0, MaxPrice].
func checkPrice(name string, amount money.Amount) *Error {
	if amount < 0 || amount > MaxPrice {
		return newErr(InvalidParameter, "error.price_out_of_range", name)
	}
	return nil
}

// checkTermMonths bounds a financing term by [1, 360].
func checkTermMonths(months int) *Error {
	if months < MinTermMonths || months > MaxTermMonths {
		return newErr(InvalidParameter, "error.term_out_of_range")
	}
	return nil
}

// checkInterestRate bounds a rate fraction by [0, 0.50].
func checkInterestRate(rate float64) *Error {
	if e := checkFloat("interestRate", rate); e != nil {
		return e
	}
	if rate < MinInterestRate || rate > MaxInterestRate {
		return newErr(InvalidParameter, "error.rate_out_of_range")
	}
	return nil
}

// checkLoanAmount bounds a loan principal by MaxLoanAmount.
func checkLoanAmount(amount money.Amount) *Error {
	if amount < 0 || amount > MaxLoanAmount {
		return newErr(InvalidParameter, "error.loan_amount_out_of_range")
	}
	return nil
}

// checkMonthlyPayment bounds a monthly payment by MaxMonthlyPayment.
func checkMonthlyPayment(amount money.Amount) *Error {
	if amount < 0 || amount > MaxMonthlyPayment {
		return newErr(InvalidParameter, "error.monthly_payment_out_of_range")
	}
	return nil
}

// maxCashBack computes the documented cash-back ceiling, growing with down
// payment and credit score (spec.md §4.7.2 references this without giving
// the exact formula; DESIGN.md records the decision).
func maxCashBack(basePrice, downPayment money.Amount, creditScore int) money.Amount {
	scoreFactor := 0.05
	switch {
	case creditScore >= 750:
		scoreFactor = 0.15
	case creditScore >= 700:
		scoreFactor = 0.10
	case creditScore >= 650:
		scoreFactor = 0.07
	}
	cap := basePrice.Mul(scoreFactor) + downPayment.Mul(0.5)
	return money.Clamp(cap, 0, basePrice)
}

func checkCashBack(basePrice, downPayment, cashBack money.Amount, creditScore int) *Error {
	if cashBack < 0 {
		return newErr(InvalidParameter, "error.cashback_negative")
	}
	if cashBack > maxCashBack(basePrice, downPayment, creditScore) {
		return newErr(InvalidParameter, "error.cashback_exceeds_cap")
	}
	return nil
}

// DrainBounded enforces the §6/§7 resource-cap rule for variable-length wire
// arrays: a declared count outside [0, 2*cap] is rejected outright; a count
// within [0, 2*cap] is always "fully consumed" (at most the first cap
// elements are returned, and a count above cap also returns a ResourceCap
// error) so callers never leave a transport stream partially read. declaredCount is
// the record count the client claims; elems is what was actually readable
// from the transport (already length-limited by the caller's framing code).
func DrainBounded[T any](declaredCount int, elems []T, cap int) ([]T, *Error) {
	if declaredCount < 0 || declaredCount > 2*cap {
		return nil, newErr(ResourceCap, "error.resource_cap_exceeded")
	}
	if len(elems) > cap {
		elems = elems[:cap]
	}
	if declaredCount > cap {
		return elems, newErr(ResourceCap, "error.resource_cap_exceeded")
	}
	return elems, nil
}
