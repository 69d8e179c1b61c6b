package finance

import (
	"cxema-backend/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AgencyFee is scope_total * pct/100, zero when the scope total or the
// percent is non-positive. Fees are never negative and never apply to a loss.
func AgencyFee(scopeTotal, pct decimal.Decimal) decimal.Decimal {
	if scopeTotal.Sign() <= 0 || pct.Sign() <= 0 {
		return decimal.Zero
	}
	return scopeTotal.Mul(pct).Div(hundred)
}

// FeeScope selects which scopes the agency fee applies to. Toggles are a
// durable client-side preference, so callers pass them per request. The
// project-wide scope uses the project price (fee on revenue) as its base;
// group scopes use the group's expense total.
type FeeScope struct {
	ProjectWide bool
	GroupIDs    []int64
}

// DefaultFeeScope is fee-on-revenue for the whole project, no group scopes.
var DefaultFeeScope = FeeScope{ProjectWide: true}

// TotalAgencyFee sums the fee over the enabled scopes.
func TotalAgencyFee(project *domain.Project, groupTotals map[int64]decimal.Decimal, scope FeeScope) decimal.Decimal {
	pct := decimal.NewFromFloat(project.AgencyFeePercent)
	fee := decimal.Zero
	if scope.ProjectWide {
		fee = fee.Add(AgencyFee(decimal.NewFromFloat(project.ProjectPriceTotal), pct))
	}
	for _, gid := range scope.GroupIDs {
		fee = fee.Add(AgencyFee(groupTotals[gid], pct))
	}
	return fee
}

// UsnBasis resolves the simplified-tax basis for a mode: LEGAL taxes what was
// received (plan+fact combined), OPERATIONAL taxes expenses plus agency fee.
func UsnBasis(mode domain.UsnMode, receivedTotal, expensesTotal, agencyFee decimal.Decimal) decimal.Decimal {
	if mode == domain.UsnLegal {
		return receivedTotal
	}
	return expensesTotal.Add(agencyFee)
}

// UsnTax is max(basis,0) * rate/100; never negative.
func UsnTax(basis, ratePct decimal.Decimal) decimal.Decimal {
	if basis.Sign() <= 0 || ratePct.Sign() <= 0 {
		return decimal.Zero
	}
	return basis.Mul(ratePct).Div(hundred)
}
