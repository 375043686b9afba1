package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rowforge/rowforge/internal/ai/ollama"
	"github.com/rowforge/rowforge/internal/config"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_Success(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"response": "  sum revenue by region  "})
	}))
	defer srv.Close()

	p := ollama.NewProvider(config.OllamaConfig{BaseURL: srv.URL, Model: "llama3"})

	resp, err := p.Interpret(context.Background(), models.InterpretRequest{
		Columns:     []string{"region", "revenue"},
		Instruction: "sum revenue by region",
	})
	require.NoError(t, err)
	assert.Equal(t, "sum revenue by region", resp)

	assert.Equal(t, "llama3", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.Contains(t, gotBody["prompt"], "region, revenue")
	assert.Contains(t, gotBody["prompt"], "USER REQUEST: sum revenue by region")
}

func TestInterpret_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := ollama.NewProvider(config.OllamaConfig{BaseURL: srv.URL, Model: "llama3"})

	_, err := p.Interpret(context.Background(), models.InterpretRequest{Columns: []string{"a"}, Instruction: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestInterpret_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := ollama.NewProvider(config.OllamaConfig{BaseURL: srv.URL, Model: "llama3"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Interpret(ctx, models.InterpretRequest{Columns: []string{"a"}, Instruction: "x"})
	require.Error(t, err)
}
