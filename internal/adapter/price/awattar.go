package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"go.uber.org/zap"
)

const DefaultAwattarURL = "https://api.awattar.de/v1/marketdata"

type marketData struct {
	Data []struct {
		StartTimestamp int64   `json:"start_timestamp"`
		EndTimestamp   int64   `json:"end_timestamp"`
		MarketPrice    float64 `json:"marketprice"`
		Unit           string  `json:"unit"`
	} `json:"data"`
}

// AwattarClient fetches day-ahead market prices.
type AwattarClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewAwattarClient(baseURL string, timeout time.Duration, logger *zap.Logger) *AwattarClient {
	if baseURL == "" {
		baseURL = DefaultAwattarURL
	}
	return &AwattarClient{
		url:    baseURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch returns the intervals between from and to with prices in EUR/kWh.
func (c *AwattarClient) Fetch(ctx context.Context, from, to time.Time) ([]domain.PriceEntry, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("start", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(to.UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data request: unexpected status %d", resp.StatusCode)
	}
	entries, err := ParseMarketData(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Info("market data fetched", zap.Int("entries", len(entries)), zap.Time("from", from), zap.Time("to", to))
	return entries, nil
}

// ParseMarketData decodes a marketdata response. Prices come in EUR/MWh.
func ParseMarketData(r io.Reader) ([]domain.PriceEntry, error) {
	var md marketData
	if err := json.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("market data decode: %w", err)
	}
	entries := make([]domain.PriceEntry, 0, len(md.Data))
	for _, d := range md.Data {
		entries = append(entries, domain.PriceEntry{
			Start: time.UnixMilli(d.StartTimestamp),
			End:   time.UnixMilli(d.EndTimestamp),
			Price: d.MarketPrice / 1000,
		})
	}
	return entries, nil
}
