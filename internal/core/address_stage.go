package core

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"mortgageintake/pkg/domain"
)

// DefaultResolveConcurrency bounds parallel address lookups within one batch.
const DefaultResolveConcurrency = 4

// AddressResolver resolves a free-text address. A false result is a normal
// outcome and leaves the input untouched.
type AddressResolver interface {
	Resolve(ctx context.Context, query string) (Address, bool)
}

// addressSlot locates the embedded address of an action that carries one.
// former reports whether the second address line joins the lookup query.
func addressSlot(a Action) (addr *Address, former bool) {
	switch p := a.Params.(type) {
	case *domain.UpdateAddressParams:
		return &p.Data.Addr, false
	case *domain.UpdateEmploymentParams:
		return p.Updates.EmployerAddress, false
	case *domain.AddFormerAddressParams:
		return &p.Address.Addr, true
	default:
		return nil, false
	}
}

func addressQuery(addr Address, former bool) string {
	if former {
		return domain.JoinNonEmpty(", ", addr.AddressLine1, addr.AddressLine2, addr.City)
	}
	return domain.JoinNonEmpty(", ", addr.AddressLine1, addr.City)
}

// ResolveAddresses completes partial addresses embedded in present-address,
// employment and former-address actions. Lookups run concurrently up to
// concurrency; the returned slice keeps input order. Addresses that already
// carry a formatted form are never looked up again. A match without a street
// line keeps the caller's line 1.
func ResolveAddresses(ctx context.Context, actions []Action, resolver AddressResolver, concurrency int) ([]Action, []domain.UnresolvedAddress) {
	out := make([]Action, len(actions))
	copy(out, actions)
	if resolver == nil || len(actions) == 0 {
		return out, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultResolveConcurrency
	}

	unresolved := make([]*domain.UnresolvedAddress, len(actions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, action := range actions {
		addr, former := addressSlot(action)
		if addr == nil || !addr.NeedsResolution() {
			continue
		}
		query := addressQuery(*addr, former)
		street := addr.AddressLine1
		g.Go(func() error {
			resolved, ok := resolver.Resolve(gctx, query)
			if !ok {
				unresolved[i] = &domain.UnresolvedAddress{ActionIndex: action.Index, Kind: action.Kind, Query: query}
				return nil
			}
			if strings.TrimSpace(resolved.AddressLine1) == "" {
				resolved.AddressLine1 = street
			}
			cp := action.Clone()
			slot, _ := addressSlot(cp)
			*slot = resolved
			out[i] = cp
			return nil
		})
	}
	_ = g.Wait()

	var notes []domain.UnresolvedAddress
	for _, n := range unresolved {
		if n != nil {
			notes = append(notes, *n)
		}
	}
	return out, notes
}
