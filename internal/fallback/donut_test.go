package fallback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonutClientInferReturnsTextOnOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req DonutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/tmp/page_001.png", req.ImagePath)

		json.NewEncoder(w).Encode(DonutResponse{Status: "ok", Text: "supplier: acme", Model: "donut-v1"})
	}))
	defer srv.Close()

	client := NewDonutClient(srv.URL, 5*time.Second)
	resp, ok := client.Infer(context.Background(), "/tmp/page_001.png")

	assert.True(t, ok)
	assert.Equal(t, "supplier: acme", resp.Text)
	assert.Equal(t, "donut-v1", resp.Model)
}

func TestDonutClientReportsUnavailableOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DonutResponse{Status: "error", Error: "model not loaded"})
	}))
	defer srv.Close()

	client := NewDonutClient(srv.URL, 5*time.Second)
	_, ok := client.Infer(context.Background(), "/tmp/page_001.png")

	assert.False(t, ok)
}

func TestDonutClientUnavailableWithEmptyBaseURL(t *testing.T) {
	client := NewDonutClient("", time.Second)
	resp, ok := client.Infer(context.Background(), "/tmp/x.png")

	assert.False(t, ok)
	assert.Equal(t, "unavailable", resp.Status)
}
