package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BinanceOptions parameterise the Binance spot price source.
type BinanceOptions struct {
	BaseURL    string
	QuoteAsset string
	Timeout    time.Duration
}

// Binance reads last traded prices from the public ticker endpoint.
type Binance struct {
	cli    *binance.Client
	quote  string
	logger zerolog.Logger
}

// NewBinance constructs the spot price source. No API key is needed for
// public tickers.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	cli := binance.NewClient("", "")
	if opts.BaseURL != "" {
		cli.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cli.HTTPClient = newHTTPClient(opts.Timeout)

	quote := strings.ToUpper(opts.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}

	return &Binance{
		cli:    cli,
		quote:  quote,
		logger: logger.With().Str("component", "binance_source").Logger(),
	}
}

// Fetch returns the last price of ticker quoted in the configured asset.
func (b *Binance) Fetch(ctx context.Context, ticker string) (decimal.Decimal, error) {
	symbol := b.pair(ticker)
	if symbol == "" {
		return decimal.Decimal{}, errors.New("ticker symbol required")
	}

	prices, err := b.cli.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}

	match, ok := lo.Find(prices, func(item *binance.SymbolPrice) bool {
		return item != nil && item.Symbol == symbol
	})
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("binance ticker %s: %w", symbol, ErrUnavailable)
	}

	price, err := decimal.NewFromString(match.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse binance price %q: %w", match.Price, err)
	}

	b.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("spot price fetched")
	return price, nil
}

func (b *Binance) pair(ticker string) string {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" || strings.HasSuffix(symbol, b.quote) && symbol != b.quote {
		return symbol
	}
	return symbol + b.quote
}

var _ Source = (*Binance)(nil)
