package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleMarketData = `{
  "object": "list",
  "data": [
    {"start_timestamp": 1709290800000, "end_timestamp": 1709294400000, "marketprice": 82.45, "unit": "Eur/MWh"},
    {"start_timestamp": 1709294400000, "end_timestamp": 1709298000000, "marketprice": 79.1, "unit": "Eur/MWh"}
  ],
  "url": "/at/v1/marketdata"
}`

func TestParseMarketData(t *testing.T) {

	require := require.New(t)

	entries, err := ParseMarketData(strings.NewReader(sampleMarketData))
	require.NoError(err)
	require.Len(entries, 2)
	require.Equal(int64(1709290800), entries[0].Start.Unix())
	require.Equal(time.Hour, entries[0].End.Sub(entries[0].Start))
	require.InDelta(0.08245, entries[0].Price, 1e-9)
	require.InDelta(0.0791, entries[1].Price, 1e-9)

	_, err = ParseMarketData(strings.NewReader("<html>"))
	require.Error(err)
}

func TestFetch(t *testing.T) {

	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleMarketData))
	}))
	defer srv.Close()

	client := NewAwattarClient(srv.URL, time.Second, zap.NewNop())
	from := time.UnixMilli(1709290800000)
	entries, err := client.Fetch(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "end=1709377200000&start=1709290800000", query)
}

func TestFetchStatus(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewAwattarClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}
