package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"satoshidaily/internal/config"
)

// ErrUnavailable means every configured price source failed; the
// settlement tick that sees it leaves the day pending and retries.
var ErrUnavailable = errors.New("all price sources failed")

// PriceSource fetches one exchange's BTC/USD spot price.
type PriceSource interface {
	Name() string
	Spot(ctx context.Context) (float64, error)
}

// PriceOracle samples all sources in parallel and settles on the median
// of the successes. Median rather than mean so a single manipulated or
// lagging exchange cannot drag the official price.
type PriceOracle struct {
	Sources []PriceSource
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewPriceOracle builds an oracle from the configured source names.
// Unknown names are rejected at startup rather than silently skipped.
func NewPriceOracle(cfg config.PriceOracleConfig, logger *zap.Logger) (*PriceOracle, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	sources := make([]PriceSource, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch name {
		case "coinbase":
			sources = append(sources, &CoinbaseSource{HTTP: httpClient})
		case "coingecko":
			sources = append(sources, &CoinGeckoSource{HTTP: httpClient})
		case "binance":
			sources = append(sources, &BinanceSource{HTTP: httpClient})
		default:
			return nil, fmt.Errorf("unknown price source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("no price sources configured")
	}
	return &PriceOracle{Sources: sources, Logger: logger, Timeout: cfg.Timeout}, nil
}

// FetchOfficialPrice returns the settled integer USD price and how many
// sources contributed. sourcesUsed == 1 is a degraded quorum: better
// than letting one exchange outage stall settlement, but logged so the
// operator can review the day.
func (o *PriceOracle) FetchOfficialPrice(ctx context.Context) (price int64, sourcesUsed int, err error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	type result struct {
		name  string
		price float64
		err   error
	}
	results := make(chan result, len(o.Sources))
	for _, src := range o.Sources {
		go func(src PriceSource) {
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			p, err := src.Spot(reqCtx)
			results <- result{name: src.Name(), price: p, err: err}
		}(src)
	}

	var prices []float64
	for range o.Sources {
		r := <-results
		if r.err != nil {
			o.logWarn("price source failed", r.name, r.err)
			continue
		}
		if r.price <= 0 {
			o.logWarn("price source returned non-positive value", r.name, nil)
			continue
		}
		prices = append(prices, r.price)
	}

	if len(prices) == 0 {
		return 0, 0, ErrUnavailable
	}
	if len(prices) == 1 && o.Logger != nil {
		o.Logger.Warn("degraded quorum: single price source",
			zap.Float64("price", prices[0]),
			zap.Int("sources_configured", len(o.Sources)),
		)
	}
	return int64(math.Round(median(prices))), len(prices), nil
}

// median of the successful values; with two values this is the mean.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func (o *PriceOracle) logWarn(msg, source string, err error) {
	if o.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("source", source)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.Logger.Warn(msg, fields...)
}
