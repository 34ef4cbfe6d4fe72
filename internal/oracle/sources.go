package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	coinbaseSpotURL  = "https://api.coinbase.com/v2/prices/BTC-USD/spot"
	coingeckoSimpURL = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"
	binanceTickerURL = "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"
)

// CoinbaseSource reads the v2 spot price endpoint.
type CoinbaseSource struct {
	HTTP     *http.Client
	Endpoint string
}

func (s *CoinbaseSource) Name() string { return "coinbase" }

func (s *CoinbaseSource) Spot(ctx context.Context) (float64, error) {
	var parsed struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := getJSON(ctx, s.HTTP, endpointOr(s.Endpoint, coinbaseSpotURL), &parsed); err != nil {
		return 0, err
	}
	return parsePositive(parsed.Data.Amount)
}

// CoinGeckoSource reads the simple-price endpoint.
type CoinGeckoSource struct {
	HTTP     *http.Client
	Endpoint string
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

func (s *CoinGeckoSource) Spot(ctx context.Context) (float64, error) {
	var parsed struct {
		Bitcoin struct {
			USD float64 `json:"usd"`
		} `json:"bitcoin"`
	}
	if err := getJSON(ctx, s.HTTP, endpointOr(s.Endpoint, coingeckoSimpURL), &parsed); err != nil {
		return 0, err
	}
	if parsed.Bitcoin.USD <= 0 {
		return 0, fmt.Errorf("invalid price")
	}
	return parsed.Bitcoin.USD, nil
}

// BinanceSource reads the v3 ticker endpoint.
type BinanceSource struct {
	HTTP     *http.Client
	Endpoint string
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Spot(ctx context.Context) (float64, error) {
	var parsed struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := getJSON(ctx, s.HTTP, endpointOr(s.Endpoint, binanceTickerURL), &parsed); err != nil {
		return 0, err
	}
	return parsePositive(parsed.Price)
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parsePositive(raw string) (float64, error) {
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || p <= 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return p, nil
}

func endpointOr(endpoint, fallback string) string {
	if endpoint != "" {
		return endpoint
	}
	return fallback
}
