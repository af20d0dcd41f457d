// Package places resolves free-text postal addresses into structured,
// geocoded addresses through a two-step suggest/detail place lookup.
package places

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned by lookups configured without an API key.
var ErrMissingCredential = errors.New("places: missing api key")

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Text     string
	PlaceRef string
}

// Component is one typed piece of a structured address.
type Component struct {
	Types    []string
	LongText string
}

// HasType reports whether the component carries typ.
func (c Component) HasType(typ string) bool {
	for _, t := range c.Types {
		if t == typ {
			return true
		}
	}
	return false
}

// Detail is the structured form of a place.
type Detail struct {
	Components       []Component
	FormattedAddress string
	// Lat and Lng are nil when the provider omitted a location.
	Lat *float64
	Lng *float64
}

// Lookup is the external place-lookup contract. Both calls of one resolution
// share sessionToken.
type Lookup interface {
	Suggest(ctx context.Context, input, sessionToken string) ([]Suggestion, error)
	Detail(ctx context.Context, placeRef, sessionToken string) (Detail, error)
}
