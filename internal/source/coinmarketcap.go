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

const (
	defaultCMCBaseURL = "https://pro-api.coinmarketcap.com"
	cmcQuotesPath     = "/v1/cryptocurrency/quotes/latest"
)

// CoinMarketCapOptions parameterise the spot price source.
type CoinMarketCapOptions struct {
	APIKey  string
	BaseURL string
	Convert string
	Timeout time.Duration
}

// CoinMarketCap reads latest token quotes.
type CoinMarketCap struct {
	opts    CoinMarketCapOptions
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewCoinMarketCap constructs the spot price source.
func NewCoinMarketCap(opts CoinMarketCapOptions, logger zerolog.Logger) *CoinMarketCap {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCMCBaseURL
	}
	if opts.Convert == "" {
		opts.Convert = "USD"
	}
	opts.Convert = strings.ToUpper(opts.Convert)

	return &CoinMarketCap{
		opts:    opts,
		baseURL: baseURL,
		client:  newHTTPClient(opts.Timeout),
		logger:  logger.With().Str("component", "cmc_source").Logger(),
	}
}

// Fetch returns the spot price of the ticker symbol in the convert currency.
func (c *CoinMarketCap) Fetch(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if c.opts.APIKey == "" {
		return decimal.Decimal{}, errors.New("coinmarketcap api key not configured")
	}
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return decimal.Decimal{}, errors.New("ticker symbol required")
	}

	var res quotesResponse
	err := getJSON(ctx, c.client, request{
		provider: "coinmarketcap",
		endpoint: c.baseURL + cmcQuotesPath,
		query:    url.Values{"symbol": {symbol}, "convert": {c.opts.Convert}},
		headers:  map[string]string{"X-CMC_PRO_API_KEY": c.opts.APIKey},
	}, &res)
	if err != nil {
		return decimal.Decimal{}, err
	}

	asset, ok := res.Data[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("symbol %s missing from response: %w", symbol, ErrUnavailable)
	}
	quote, ok := asset.Quote[c.opts.Convert]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("symbol %s has no %s quote: %w", symbol, c.opts.Convert, ErrUnavailable)
	}
	price, err := validDecimal(quote.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("symbol %s: %w", symbol, err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("spot price fetched")
	return price, nil
}

type quotesResponse struct {
	Data map[string]struct {
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price decimal.NullDecimal `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

var _ Source = (*CoinMarketCap)(nil)
