package core

import (
	"context"

	"mortgageintake/pkg/domain"
)

// NewClientReferenceRule warns when an action targets a client id that does
// not exist. The action still proceeds.
func NewClientReferenceRule() Rule { return clientReferenceRule{} }

type clientReferenceRule struct{}

func (clientReferenceRule) Name() string { return "client_reference" }

func (r clientReferenceRule) Evaluate(_ context.Context, view StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	id := action.ClientID()
	if id == "" || domain.IsPlaceholder(id) || view == nil {
		return c.result()
	}
	if _, ok := view.FindClient(id); !ok {
		c.warn("clientId", "client %s not found; %s will be applied optimistically", id, action.Kind)
	}
	return c.result()
}

// NewClientFieldsRule validates contact and identity fields on client actions.
func NewClientFieldsRule() Rule { return clientFieldsRule{} }

type clientFieldsRule struct{}

func (clientFieldsRule) Name() string { return "client_fields" }

func (r clientFieldsRule) Evaluate(_ context.Context, _ StateView, action Action) (Result, error) {
	c := newChecks(r.Name())
	var f domain.ClientFields
	switch p := action.Params.(type) {
	case *domain.AddClientParams:
		f = p.ClientFields
	case *domain.UpdateClientParams:
		f = p.Updates
	default:
		return c.result()
	}
	c.phone("phone", f.Phone)
	c.email("email", f.Email)
	c.ssn("ssn", f.SSN)
	c.date("dob", f.DateOfBirth)
	if f.Dependents != nil && *f.Dependents < 0 {
		c.block("dependents", "dependents must not be negative, got %d", *f.Dependents)
	}
	return c.result()
}
