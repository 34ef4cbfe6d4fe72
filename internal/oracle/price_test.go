package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"satoshidaily/internal/config"
)

func coinbaseServer(t *testing.T, price string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"amount":%q}}`, price)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func coingeckoServer(t *testing.T, price float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"bitcoin":{"usd":%g}}`, price)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func binanceServer(t *testing.T, price string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"symbol":"BTCUSDT","price":%q}`, price)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOfficialPriceMedianOfThree(t *testing.T) {
	oracle := &PriceOracle{Sources: []PriceSource{
		&CoinbaseSource{Endpoint: coinbaseServer(t, "100000.40").URL},
		&CoinGeckoSource{Endpoint: coingeckoServer(t, 100010).URL},
		&BinanceSource{Endpoint: binanceServer(t, "100005.00").URL},
	}}

	price, used, err := oracle.FetchOfficialPrice(context.Background())
	if err != nil {
		t.Fatalf("FetchOfficialPrice: %v", err)
	}
	if used != 3 {
		t.Fatalf("sourcesUsed = %d, want 3", used)
	}
	if price != 100005 {
		t.Fatalf("price = %d, want 100005 (median)", price)
	}
}

func TestFetchOfficialPriceMeanOfTwoOnFailure(t *testing.T) {
	oracle := &PriceOracle{Sources: []PriceSource{
		&CoinbaseSource{Endpoint: failingServer(t).URL},
		&CoinGeckoSource{Endpoint: coingeckoServer(t, 100010).URL},
		&BinanceSource{Endpoint: binanceServer(t, "100000").URL},
	}}

	price, used, err := oracle.FetchOfficialPrice(context.Background())
	if err != nil {
		t.Fatalf("FetchOfficialPrice: %v", err)
	}
	if used != 2 {
		t.Fatalf("sourcesUsed = %d, want 2", used)
	}
	if price != 100005 {
		t.Fatalf("price = %d, want 100005 (mean of two)", price)
	}
}

func TestFetchOfficialPriceDegradedQuorum(t *testing.T) {
	oracle := &PriceOracle{Sources: []PriceSource{
		&CoinbaseSource{Endpoint: failingServer(t).URL},
		&CoinGeckoSource{Endpoint: failingServer(t).URL},
		&BinanceSource{Endpoint: binanceServer(t, "99999.60").URL},
	}}

	price, used, err := oracle.FetchOfficialPrice(context.Background())
	if err != nil {
		t.Fatalf("FetchOfficialPrice: %v", err)
	}
	if used != 1 {
		t.Fatalf("sourcesUsed = %d, want 1", used)
	}
	if price != 100000 {
		t.Fatalf("price = %d, want 100000 (rounded)", price)
	}
}

func TestFetchOfficialPriceAllSourcesDown(t *testing.T) {
	oracle := &PriceOracle{Sources: []PriceSource{
		&CoinbaseSource{Endpoint: failingServer(t).URL},
		&BinanceSource{Endpoint: failingServer(t).URL},
	}}

	_, _, err := oracle.FetchOfficialPrice(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNewPriceOracleRejectsUnknownSource(t *testing.T) {
	cfg := config.PriceOracleConfig{Sources: []string{"coinbase", "kraken"}}
	if _, err := NewPriceOracle(cfg, nil); err == nil {
		t.Fatal("expected error for unknown source name")
	}
}

func TestMedianOddAndEven(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("median odd = %v, want 2", got)
	}
	if got := median([]float64{10, 20}); got != 15 {
		t.Fatalf("median even = %v, want 15", got)
	}
}
