package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultOpenSeaBaseURL = "https://api.opensea.io/api/v2"

// OpenSeaOptions parameterise the floor price source.
type OpenSeaOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenSea reads collection floor prices from the OpenSea stats endpoint.
type OpenSea struct {
	opts    OpenSeaOptions
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewOpenSea constructs the floor price source.
func NewOpenSea(opts OpenSeaOptions, logger zerolog.Logger) *OpenSea {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenSeaBaseURL
	}
	return &OpenSea{
		opts:    opts,
		baseURL: baseURL,
		client:  newHTTPClient(opts.Timeout),
		logger:  logger.With().Str("component", "opensea_source").Logger(),
	}
}

// Fetch returns the current floor price of the collection slug.
func (o *OpenSea) Fetch(ctx context.Context, collection string) (decimal.Decimal, error) {
	if o.opts.APIKey == "" {
		return decimal.Decimal{}, errors.New("opensea api key not configured")
	}
	slug := strings.TrimSpace(collection)
	if slug == "" {
		return decimal.Decimal{}, errors.New("collection slug required")
	}

	var res statsResponse
	err := getJSON(ctx, o.client, request{
		provider: "opensea",
		endpoint: fmt.Sprintf("%s/collections/%s/stats", o.baseURL, url.PathEscape(slug)),
		headers:  map[string]string{"X-API-KEY": o.opts.APIKey},
	}, &res)
	if err != nil {
		return decimal.Decimal{}, err
	}

	floor, err := validDecimal(res.Total.FloorPrice)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("collection %s has no floor price: %w", slug, err)
	}

	o.logger.Debug().Str("collection", slug).Str("floor_price", floor.String()).Msg("floor price fetched")
	return floor, nil
}

type statsResponse struct {
	Total struct {
		FloorPrice       decimal.NullDecimal `json:"floor_price"`
		FloorPriceSymbol string              `json:"floor_price_symbol"`
	} `json:"total"`
}

var _ Source = (*OpenSea)(nil)
