package places

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mortgageintake/pkg/domain"
)

// DefaultTimeout bounds one suggest+detail round trip.
const DefaultTimeout = 8 * time.Second

// Resolver turns a free-text address into a structured domain.Address. It never
// returns an error: every failure is logged and reported as "not resolved".
type Resolver struct {
	lookup   Lookup
	cache    Cache
	logger   *slog.Logger
	timeout  time.Duration
	newToken func() string
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithCache memoises successful resolutions.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger used for lookup warnings.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout bounds each resolution. Zero disables the bound.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

// WithSessionTokens overrides session token generation.
func WithSessionTokens(fn func() string) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.newToken = fn
		}
	}
}

// NewResolver constructs a resolver over lookup. A nil lookup yields a resolver
// that never resolves.
func NewResolver(lookup Lookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		lookup:   lookup,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  DefaultTimeout,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks query up and returns the structured address of the first
// candidate. The boolean is false when nothing was resolved.
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.Address, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Address{}, false
	}
	if r.lookup == nil {
		r.logger.Warn("address lookup not configured", "query", query)
		return domain.Address{}, false
	}
	key := cacheKey(query)
	if r.cache != nil {
		addr, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("address cache read failed", "error", err)
		} else if ok {
			return addr, true
		}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	token := r.newToken()
	suggestions, err := r.lookup.Suggest(ctx, query, token)
	if err != nil {
		r.warn("address suggest failed", query, err)
		return domain.Address{}, false
	}
	if len(suggestions) == 0 {
		r.logger.Info("address lookup returned no candidates", "query", query)
		return domain.Address{}, false
	}
	first := suggestions[0]
	detail, err := r.lookup.Detail(ctx, first.PlaceRef, token)
	if err != nil {
		r.warn("address detail failed", query, err)
		return domain.Address{}, false
	}
	addr := AddressFromDetail(detail)
	if !addr.Resolved() {
		addr.FormattedAddress = strings.TrimSpace(first.Text)
	}
	if !addr.Resolved() {
		r.logger.Info("address detail carried no formatted address", "query", query, "place", first.PlaceRef)
		return domain.Address{}, false
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, addr); err != nil {
			r.logger.Warn("address cache write failed", "error", err)
		}
	}
	return addr, true
}

func (r *Resolver) warn(msg, query string, err error) {
	attrs := []any{"query", query, "error", err}
	if errors.Is(err, context.DeadlineExceeded) {
		attrs = append(attrs, "timeout", r.timeout)
	}
	r.logger.Warn(msg, attrs...)
}

// AddressFromDetail maps typed address components onto domain.Address.
func AddressFromDetail(d Detail) domain.Address {
	first := func(types ...string) string {
		for _, typ := range types {
			for _, c := range d.Components {
				if c.HasType(typ) && strings.TrimSpace(c.LongText) != "" {
					return strings.TrimSpace(c.LongText)
				}
			}
		}
		return ""
	}
	addr := domain.Address{
		AddressLine1:     domain.JoinNonEmpty(" ", first("street_number"), first("route")),
		AddressLine2:     first("subpremise"),
		City:             first("locality", "postal_town", "sublocality"),
		Region:           first("administrative_area_level_1"),
		PostalCode:       first("postal_code"),
		Country:          first("country"),
		FormattedAddress: strings.TrimSpace(d.FormattedAddress),
	}
	if d.Lat != nil {
		addr.Lat = *d.Lat
	}
	if d.Lng != nil {
		addr.Lng = *d.Lng
	}
	return addr
}

func cacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
