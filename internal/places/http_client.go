package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Places API (New) endpoint.
const DefaultBaseURL = "https://places.googleapis.com"

const detailFieldMask = "addressComponents,formattedAddress,location"

// HTTPClient implements Lookup against the Places API (New).
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(u string) HTTPOption {
	return func(c *HTTPClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(h *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit throttles outgoing calls to r per second with the given burst.
// A zero rate disables throttling.
func WithRateLimit(r float64, burst int) HTTPOption {
	return func(c *HTTPClient) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// NewHTTPClient constructs a lookup client. An empty apiKey is accepted; every
// call then fails with ErrMissingCredential.
func NewHTTPClient(apiKey string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type autocompleteRequest struct {
	Input        string `json:"input"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type autocompleteResponse struct {
	Suggestions []struct {
		PlacePrediction *struct {
			PlaceID string `json:"placeId"`
			Text    struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"placePrediction"`
	} `json:"suggestions"`
}

type placeResponse struct {
	AddressComponents []struct {
		LongText string   `json:"longText"`
		Types    []string `json:"types"`
	} `json:"addressComponents"`
	FormattedAddress string `json:"formattedAddress"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// Suggest returns autocomplete candidates for input in provider order.
func (c *HTTPClient) Suggest(ctx context.Context, input, sessionToken string) ([]Suggestion, error) {
	body, err := json.Marshal(autocompleteRequest{Input: input, SessionToken: sessionToken})
	if err != nil {
		return nil, err
	}
	var out autocompleteResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/places:autocomplete", "", body, &out); err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s.PlacePrediction == nil || s.PlacePrediction.PlaceID == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{Text: s.PlacePrediction.Text.Text, PlaceRef: s.PlacePrediction.PlaceID})
	}
	return suggestions, nil
}

// Detail fetches the structured address for placeRef.
func (c *HTTPClient) Detail(ctx context.Context, placeRef, sessionToken string) (Detail, error) {
	endpoint := c.baseURL + "/v1/places/" + url.PathEscape(placeRef)
	if sessionToken != "" {
		endpoint += "?sessionToken=" + url.QueryEscape(sessionToken)
	}
	var out placeResponse
	if err := c.do(ctx, http.MethodGet, endpoint, detailFieldMask, nil, &out); err != nil {
		return Detail{}, err
	}
	d := Detail{FormattedAddress: out.FormattedAddress}
	for _, comp := range out.AddressComponents {
		d.Components = append(d.Components, Component{Types: comp.Types, LongText: comp.LongText})
	}
	if out.Location != nil {
		lat, lng := out.Location.Latitude, out.Location.Longitude
		d.Lat, d.Lng = &lat, &lng
	}
	return d, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint, fieldMask string, body []byte, out any) error {
	if c.apiKey == "" {
		return ErrMissingCredential
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("places: rate limit: %w", err)
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("places: build request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	if fieldMask != "" {
		req.Header.Set("X-Goog-FieldMask", fieldMask)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("places: %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("places: %s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("places: decode response: %w", err)
	}
	return nil
}
