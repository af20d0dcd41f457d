package places

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageintake/pkg/domain"
)

type fakeLookup struct {
	mu          sync.Mutex
	suggestions []Suggestion
	detail      Detail
	suggestErr  error
	detailErr   error
	calls       int
	tokens      []string
	block       bool
}

func (f *fakeLookup) Suggest(ctx context.Context, _ string, token string) ([]Suggestion, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.suggestions, f.suggestErr
}

func (f *fakeLookup) Detail(_ context.Context, _ string, token string) (Detail, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f.detail, f.detailErr
}

func austinDetail() Detail {
	lat, lng := 30.27, -97.74
	return Detail{
		Components: []Component{
			{Types: []string{"street_number"}, LongText: "12"},
			{Types: []string{"route"}, LongText: "Oak Street"},
			{Types: []string{"subpremise"}, LongText: "Unit 3"},
			{Types: []string{"postal_town"}, LongText: "Austin"},
			{Types: []string{"administrative_area_level_1"}, LongText: "TX"},
			{Types: []string{"postal_code"}, LongText: "78701"},
			{Types: []string{"country"}, LongText: "US"},
		},
		FormattedAddress: " 12 Oak St Unit 3, Austin, TX 78701, USA ",
		Lat:              &lat,
		Lng:              &lng,
	}
}

func TestAddressFromDetail(t *testing.T) {
	addr := AddressFromDetail(austinDetail())
	assert.Equal(t, domain.Address{
		AddressLine1:     "12 Oak Street",
		AddressLine2:     "Unit 3",
		City:             "Austin",
		Region:           "TX",
		PostalCode:       "78701",
		Country:          "US",
		FormattedAddress: "12 Oak St Unit 3, Austin, TX 78701, USA",
		Lat:              30.27,
		Lng:              -97.74,
	}, addr)

	locality := AddressFromDetail(Detail{Components: []Component{
		{Types: []string{"sublocality"}, LongText: "Brooklyn"},
		{Types: []string{"locality"}, LongText: "New York"},
	}})
	assert.Equal(t, "New York", locality.City, "locality wins over sublocality")
	assert.False(t, locality.Resolved())
}

func TestResolverResolvesFirstCandidateAndCaches(t *testing.T) {
	lookup := &fakeLookup{
		suggestions: []Suggestion{{Text: "12 Oak St", PlaceRef: "p1"}, {Text: "other", PlaceRef: "p2"}},
		detail:      austinDetail(),
	}
	cache, err := NewMemoryCache(8)
	require.NoError(t, err)
	tokens := 0
	r := NewResolver(lookup, WithCache(cache), WithSessionTokens(func() string {
		tokens++
		return "session-" + string(rune('0'+tokens))
	}))

	addr, ok := r.Resolve(context.Background(), "  12 Oak St,   Austin ")
	require.True(t, ok)
	assert.Equal(t, "Austin", addr.City)
	assert.Equal(t, []string{"session-1", "session-1"}, lookup.tokens, "suggest and detail share one session")
	assert.Equal(t, 1, cache.Len())

	again, ok := r.Resolve(context.Background(), "12 OAK ST, austin")
	require.True(t, ok)
	assert.Equal(t, addr, again)
	assert.Equal(t, 1, lookup.calls, "second resolution served from cache")
}

func TestResolverFallsBackToSuggestionText(t *testing.T) {
	lookup := &fakeLookup{
		suggestions: []Suggestion{{Text: " 9 Elm Rd, Houston, TX ", PlaceRef: "p1"}},
		detail:      Detail{Components: []Component{{Types: []string{"route"}, LongText: "Elm Road"}}},
	}
	addr, ok := NewResolver(lookup).Resolve(context.Background(), "9 Elm Rd")
	require.True(t, ok)
	assert.Equal(t, "9 Elm Rd, Houston, TX", addr.FormattedAddress)
	assert.Equal(t, "Elm Road", addr.AddressLine1)
}

func TestResolverFailuresAreNotResolved(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cases := map[string]*fakeLookup{
		"suggest error":  {suggestErr: errors.New("upstream 500")},
		"no candidates":  {},
		"detail error":   {suggestions: []Suggestion{{PlaceRef: "p1"}}, detailErr: errors.New("not found")},
		"empty detail":   {suggestions: []Suggestion{{PlaceRef: "p1"}}},
		"missing apikey": {suggestErr: ErrMissingCredential},
	}
	for name, lookup := range cases {
		t.Run(name, func(t *testing.T) {
			addr, ok := NewResolver(lookup, WithLogger(logger)).Resolve(context.Background(), "1 Main St")
			assert.False(t, ok)
			assert.Equal(t, domain.Address{}, addr)
		})
	}
	assert.Contains(t, buf.String(), "address suggest failed")
	assert.Contains(t, buf.String(), "address detail failed")

	_, ok := NewResolver(nil).Resolve(context.Background(), "1 Main St")
	assert.False(t, ok)
	_, ok = NewResolver(&fakeLookup{}).Resolve(context.Background(), "   ")
	assert.False(t, ok)
}

func TestResolverTimeout(t *testing.T) {
	var buf bytes.Buffer
	lookup := &fakeLookup{block: true}
	r := NewResolver(lookup, WithTimeout(20*time.Millisecond), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	_, ok := r.Resolve(context.Background(), "1 Slow St")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "timeout=20ms")
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (domain.Address, bool, error) {
	return domain.Address{}, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, domain.Address) error {
	return errors.New("cache down")
}

func TestResolverSurvivesCacheFailures(t *testing.T) {
	var buf bytes.Buffer
	lookup := &fakeLookup{suggestions: []Suggestion{{PlaceRef: "p1"}}, detail: austinDetail()}
	r := NewResolver(lookup, WithCache(failingCache{}), WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	_, ok := r.Resolve(context.Background(), "12 Oak St")
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "address cache read failed")
	assert.Contains(t, buf.String(), "address cache write failed")
}

func TestCacheKeyProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("idempotent", prop.ForAll(
		func(s string) bool { return cacheKey(cacheKey(s)) == cacheKey(s) },
		gen.AnyString(),
	))
	properties.Property("ignores case and spacing", prop.ForAll(
		func(a, b string) bool {
			q := a + " " + b
			noisy := "  " + strings.ToUpper(a) + "\t\t" + strings.ToUpper(b) + " "
			return cacheKey(q) == cacheKey(noisy)
		},
		gen.Identifier(),
		gen.Identifier(),
	))
	properties.TestingRun(t)
}
