package core

import (
	"context"

	"mortgageintake/pkg/domain"
)

// NewEmploymentRule validates employment dates, phone and income.
func NewEmploymentRule() Rule { return employmentRule{} }

type employmentRule struct{}

func (employmentRule) Name() string { return "employment" }

func (r employmentRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	p, ok := action.Params.(*domain.UpdateEmploymentParams)
	if !ok {
		return c.result()
	}
	u := p.Updates
	c.dateRange("startDate", u.StartDate, "endDate", u.EndDate)
	c.phone("employerPhone", u.EmployerPhone)
	c.nonNegative("grossMonthlyIncome", u.GrossMonthlyIncome)
	return c.result()
}

// NewActiveIncomeRule rejects negative income amounts.
func NewActiveIncomeRule() Rule { return activeIncomeRule{} }

type activeIncomeRule struct{}

func (activeIncomeRule) Name() string { return "active_income" }

func (r activeIncomeRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	p, ok := action.Params.(*domain.UpdateIncomeParams)
	if !ok {
		return c.result()
	}
	c.nonNegative("monthlyAmount", p.Updates.MonthlyAmount)
	c.nonNegative("bonus", p.Updates.Bonus)
	c.nonNegative("commissions", p.Updates.Commissions)
	c.nonNegative("overtime", p.Updates.Overtime)
	return c.result()
}

// NewAssetRule rejects negative asset amounts.
func NewAssetRule() Rule { return assetRule{} }

type assetRule struct{}

func (assetRule) Name() string { return "asset" }

func (r assetRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	if p, ok := action.Params.(*domain.UpdateAssetParams); ok {
		c.nonNegative("amount", p.Updates.Amount)
	}
	return c.result()
}

// NewRealEstateRule rejects negative property figures.
func NewRealEstateRule() Rule { return realEstateRule{} }

type realEstateRule struct{}

func (realEstateRule) Name() string { return "real_estate" }

func (r realEstateRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	p, ok := action.Params.(*domain.UpdateRealEstateParams)
	if !ok {
		return c.result()
	}
	c.nonNegative("propertyValue", p.Updates.PropertyValue)
	c.nonNegative("monthlyTaxes", p.Updates.MonthlyTaxes)
	c.nonNegative("monthlyInsurance", p.Updates.MonthlyInsurance)
	return c.result()
}
