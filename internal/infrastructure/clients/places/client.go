package places

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dermatlas/backend/internal/domain/providers"
	apperrors "github.com/dermatlas/backend/pkg/errors"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// searchCacheTTL keeps search pages for a day so a re-run after a crash
	// replays results without spending upstream budget again.
	searchCacheTTL = 60 * 60 * 24
)

// defaultFieldMask is the field-selection list sent with every search; only
// fields the classifier, normalizer, or stored entity consume are requested.
var defaultFieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.addressComponents",
	"places.location",
	"places.types",
	"places.primaryType",
	"places.businessStatus",
	"places.rating",
	"places.userRatingCount",
	"places.nationalPhoneNumber",
	"places.internationalPhoneNumber",
	"places.websiteUri",
	"places.googleMapsUri",
	"places.priceLevel",
	"places.regularOpeningHours",
	"places.currentOpeningHours",
	"places.accessibilityOptions",
	"places.parkingOptions",
	"places.paymentOptions",
	"places.photos",
	"nextPageToken",
}, ",")

// Searcher is the upstream surface the query strategies consume
type Searcher interface {
	SearchText(ctx context.Context, req TextSearchRequest) (*SearchResponse, error)
	SearchNearby(ctx context.Context, req NearbySearchRequest) (*SearchResponse, error)
	PhotoMediaURI(ctx context.Context, photoName string, maxWidthPx int) (string, error)
}

// Client talks to the places-search upstream through the throttled gateway
type Client struct {
	apiKey  string
	baseURL string
	gateway *Gateway
	cache   providers.CacheProvider
}

// NewClient creates a places client. The cache is optional; when present,
// successful search pages are cached for a day.
func NewClient(apiKey, baseURL string, gateway *Gateway, cache providers.CacheProvider) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		gateway: gateway,
		cache:   cache,
	}
}

// Gateway exposes the underlying gateway for budget accounting
func (c *Client) Gateway() *Gateway {
	return c.gateway
}

// SearchText runs one page of a text search
func (c *Client) SearchText(ctx context.Context, req TextSearchRequest) (*SearchResponse, error) {
	return c.search(ctx, c.baseURL+"/places:searchText", "text", req)
}

// SearchNearby runs a fixed-radius search around a point
func (c *Client) SearchNearby(ctx context.Context, req NearbySearchRequest) (*SearchResponse, error) {
	return c.search(ctx, c.baseURL+"/places:searchNearby", "nearby", req)
}

func (c *Client) search(ctx context.Context, endpoint, kind string, payload interface{}) (*SearchResponse, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewValidationError("places api key is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode search request", err)
	}

	cacheKey := "places:v1:" + kind + ":" + hashKey(body)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var out SearchResponse
			if err := json.Unmarshal(cached, &out); err == nil {
				return &out, nil
			}
		}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Goog-Api-Key", c.apiKey)
	header.Set("X-Goog-FieldMask", defaultFieldMask)

	resp, err := c.gateway.Do(ctx, ReplayableBody(http.MethodPost, endpoint, body, header))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Retries are already spent; anything still failing here is a
		// permanent per-query failure for the caller to absorb.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("%s search returned status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewExternalError("failed to decode search response", err)
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(out); err == nil {
			_ = c.cache.Set(ctx, cacheKey, encoded, searchCacheTTL)
		}
	}

	return &out, nil
}

// PhotoMediaURI resolves a photo resource name to a servable URI
func (c *Client) PhotoMediaURI(ctx context.Context, photoName string, maxWidthPx int) (string, error) {
	if c.apiKey == "" {
		return "", apperrors.NewValidationError("places api key is required")
	}
	if maxWidthPx <= 0 {
		maxWidthPx = 800
	}

	endpoint := fmt.Sprintf("%s/%s/media?maxWidthPx=%d&skipHttpRedirect=true", c.baseURL, strings.Trim(photoName, "/"), maxWidthPx)
	header := http.Header{}
	header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.gateway.Do(ctx, ReplayableBody(http.MethodGet, endpoint, nil, header))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewExternalError(fmt.Sprintf("photo media returned status %d", resp.StatusCode), nil)
	}

	var out struct {
		Name     string `json:"name"`
		PhotoURI string `json:"photoUri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.NewExternalError("failed to decode photo media response", err)
	}
	return out.PhotoURI, nil
}

func hashKey(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}
