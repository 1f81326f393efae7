package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics(func() int { return 3 })
	m.PredictionsTotal.WithLabelValues("High").Inc()
	m.PredictionsTotal.WithLabelValues("High").Inc()
	m.PredictionErrors.WithLabelValues("invalid_input").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("invalid_input")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StreamClients))

	// independent registries do not collide
	other := NewMetrics(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(other.StreamClients))
}

func TestWebSocketHubBroadcast(t *testing.T) {
	hub := NewWebSocketHub(zap.NewNop())
	go hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(PredictionEvent, map[string]string{"predicted_category": "Low"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, PredictionEvent, msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.JSONEq(t, `{"predicted_category":"Low"}`, string(msg.Data))

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHubStopped(t *testing.T) {
	hub := NewWebSocketHub(nil)
	go hub.Start()
	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())
}
