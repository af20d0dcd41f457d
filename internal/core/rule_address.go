package core

import (
	"context"
	"strings"

	"mortgageintake/pkg/domain"
)

// NewAddressRule validates present and former address actions.
func NewAddressRule() Rule { return addressRule{} }

type addressRule struct{}

func (addressRule) Name() string { return "address" }

func (r addressRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	switch p := action.Params.(type) {
	case *domain.UpdateAddressParams:
		line := p.Data.Addr.AddressLine1
		if line != "" && strings.TrimSpace(line) == "" {
			c.block("address1", "address line 1 must not be blank")
		}
		if p.Data.MonthlyRent != nil && *p.Data.MonthlyRent < 0 {
			c.block("monthlyRent", "monthlyRent must not be negative, got %g", *p.Data.MonthlyRent)
		}
		c.date("fromDate", p.Data.FromDate)
	case *domain.AddFormerAddressParams:
		if strings.TrimSpace(p.Address.Addr.AddressLine1) == "" {
			c.block("address1", "former address requires address line 1")
		}
		c.dateRange("fromDate", p.Address.FromDate, "toDate", p.Address.ToDate)
	}
	return c.result()
}
