package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicdesk/grievance-api/internal/dto"
)

func TestClassifierServiceSuggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify", r.URL.Path)
		var payload struct {
			Text string `json:"text"`
			TopN int    `json:"top_n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "broken street light", payload.Text)
		require.Equal(t, 3, payload.TopN)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"suggestions": []string{"Street Lights", "Electricity", "Roads", "Water"},
		})
	}))
	defer server.Close()

	svc := NewClassifierService(server.URL, 3, time.Second, nil)
	resp, err := svc.Suggest(context.Background(), dto.SuggestRequest{Description: "broken street light"})
	require.NoError(t, err)
	require.Equal(t, []string{"Street Lights", "Electricity", "Roads"}, resp.Suggestions)
}

func TestClassifierServiceBlankDescriptionReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("classifier should not be called for blank input")
	}))
	defer server.Close()

	svc := NewClassifierService(server.URL, 3, time.Second, nil)
	resp, err := svc.Suggest(context.Background(), dto.SuggestRequest{Description: "   "})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Empty(t, resp.Suggestions)
}

func TestClassifierServiceDisabledReturnsEmpty(t *testing.T) {
	svc := NewClassifierService("", 3, time.Second, nil)
	resp, err := svc.Suggest(context.Background(), dto.SuggestRequest{Description: "anything"})
	require.NoError(t, err)
	require.Empty(t, resp.Suggestions)
}

func TestClassifierServiceDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewClassifierService(server.URL, 3, time.Second, nil)
	resp, err := svc.Suggest(context.Background(), dto.SuggestRequest{Description: "garbage pileup"})
	require.NoError(t, err)
	require.Empty(t, resp.Suggestions)

	server.Close()
	resp, err = svc.Suggest(context.Background(), dto.SuggestRequest{Description: "garbage pileup"})
	require.NoError(t, err)
	require.Empty(t, resp.Suggestions)
}

func TestClassifierServicePing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewClassifierService(server.URL, 3, time.Second, nil)
	require.NoError(t, svc.Ping(context.Background()))
}
