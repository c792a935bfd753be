package monitor

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.ObservePass(3*time.Second, 50)
	m.ObserveSymbol("ok")
	m.ObserveSymbol("ok")
	m.ObserveSymbol("failed")
	m.ObserveSignal("LONG")
	m.ObserveDeliveryFailure()
	m.ObserveThrottled()
	m.ObserveThrottled()
	m.ObservePassFailure()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passFailures))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.universeSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.symbols.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.symbols.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("LONG")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.signals.WithLabelValues("SHORT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.throttled))
	assert.Greater(t, testutil.ToFloat64(m.lastPass), 0.0)
}

func TestObserveREST(t *testing.T) {
	m := New(DefaultConfig())

	m.ObserveREST("binance", "/fapi/v1/klines", 20*time.Millisecond, nil)
	m.ObserveREST("binance", "/fapi/v1/klines", 30*time.Millisecond, errors.New("502"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.restRequests.WithLabelValues("/fapi/v1/klines")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restErrors.WithLabelValues("/fapi/v1/klines")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.restLatency))
}

func TestIndependentRegistries(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())
	a.ObserveSignal("SHORT")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.signals.WithLabelValues("SHORT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.signals.WithLabelValues("SHORT")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.ObservePass(time.Second, 7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "signal_scanner_scan_universe_size 7"), text)
	assert.Contains(t, text, "signal_scanner_scan_passes_total 1")
}
