package rating

import (
	"errors"

	"github.com/shopspring/decimal"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
)

var (
	ErrInvalidUsageData = errors.New("invalid_usage_data")
	ErrInvalidTariff    = errors.New("invalid_tariff")
	ErrInvalidRates     = errors.New("invalid_rates")
)

// Rates is the explicit rate set applied on top of the tariff subtotal.
// Passing it in (rather than reading ambient config) keeps the calculator
// deterministic under test.
type Rates struct {
	Tax       decimal.Decimal
	Surcharge decimal.Decimal
}

// Charge is the priced outcome for one SIM in one month. All amounts are
// cents, rounded half-up.
type Charge struct {
	SimID          int64 `json:"sim_id"`
	SubtotalCents  int64 `json:"subtotal_cents"`
	TaxCents       int64 `json:"tax_cents"`
	SurchargeCents int64 `json:"surcharge_cents"`
	TotalCents     int64 `json:"total_cents"`
}

// Calculate prices one SIM's usage against its resolved tariff.
//
// Prepaid: each dimension is free within its allowance; beyond it the excess
// is charged at the overage rate. Postpaid: every unit is charged at the
// per-unit rate, plus the monthly rental. total = subtotal * (1 + tax +
// surcharge). Negative usage is rejected, never clamped.
func Calculate(usage usagedomain.SimUsage, tariff plandomain.Tariff, rates Rates) (Charge, error) {
	if usage.CallMinutes < 0 || usage.DataGB < 0 || usage.SmsCount < 0 {
		return Charge{}, ErrInvalidUsageData
	}
	if rates.Tax.IsNegative() || rates.Surcharge.IsNegative() {
		return Charge{}, ErrInvalidRates
	}

	var subtotal decimal.Decimal
	switch tariff.Type {
	case plandomain.PlanTypePrepaid:
		if tariff.Prepaid == nil {
			return Charge{}, ErrInvalidTariff
		}
		var err error
		subtotal, err = prepaidSubtotal(usage, tariff.Prepaid)
		if err != nil {
			return Charge{}, err
		}
	case plandomain.PlanTypePostpaid:
		if tariff.Postpaid == nil {
			return Charge{}, ErrInvalidTariff
		}
		subtotal = postpaidSubtotal(usage, tariff.Postpaid)
	default:
		return Charge{}, ErrInvalidTariff
	}

	tax := subtotal.Mul(rates.Tax)
	surcharge := subtotal.Mul(rates.Surcharge)
	total := subtotal.Add(tax).Add(surcharge)

	return Charge{
		SimID:          int64(usage.SimID),
		SubtotalCents:  roundCents(subtotal),
		TaxCents:       roundCents(tax),
		SurchargeCents: roundCents(surcharge),
		TotalCents:     roundCents(total),
	}, nil
}

func prepaidSubtotal(usage usagedomain.SimUsage, plan *plandomain.PrepaidPlan) (decimal.Decimal, error) {
	if plan.DataAllowanceGB < 0 || plan.CallAllowanceMinutes < 0 || plan.SmsAllowance < 0 {
		return decimal.Decimal{}, ErrInvalidUsageData
	}

	dataOver := overage(decimal.NewFromFloat(usage.DataGB), decimal.NewFromFloat(plan.DataAllowanceGB))
	callOver := overage(decimal.NewFromFloat(usage.CallMinutes), decimal.NewFromFloat(plan.CallAllowanceMinutes))
	smsOver := overage(decimal.NewFromInt(usage.SmsCount), decimal.NewFromInt(plan.SmsAllowance))

	subtotal := dataOver.Mul(decimal.NewFromInt(plan.DataOverageCentsGB))
	subtotal = subtotal.Add(callOver.Mul(decimal.NewFromInt(plan.CallOverageCentsMin)))
	subtotal = subtotal.Add(smsOver.Mul(decimal.NewFromInt(plan.SmsOverageCents)))
	return subtotal, nil
}

func postpaidSubtotal(usage usagedomain.SimUsage, plan *plandomain.PostpaidPlan) decimal.Decimal {
	subtotal := decimal.NewFromFloat(usage.CallMinutes).Mul(decimal.NewFromInt(plan.CallRateCentsMin))
	subtotal = subtotal.Add(decimal.NewFromFloat(usage.DataGB).Mul(decimal.NewFromInt(plan.DataRateCentsGB)))
	subtotal = subtotal.Add(decimal.NewFromInt(usage.SmsCount).Mul(decimal.NewFromInt(plan.SmsRateCents)))
	return subtotal.Add(decimal.NewFromInt(plan.MonthlyRentalCents))
}

func overage(used, allowed decimal.Decimal) decimal.Decimal {
	excess := used.Sub(allowed)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess
}

// roundCents rounds half-up to whole cents. decimal.Round is half away from
// zero, which matches half-up for the non-negative amounts produced here.
func roundCents(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}
