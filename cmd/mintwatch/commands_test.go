package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"mintwatch"}, args...))
	return out.String(), err
}

func TestMintFormatCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"six decimals", []string{"5000000", "6"}, "5.000000"},
		{"zero decimals", []string{"42", "0"}, "42"},
		{"fractional", []string{"1", "9"}, "0.000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, append([]string{"mint", "format"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, strings.TrimSpace(out))
		})
	}
}

func TestMintFormatCommand_InvalidArgs(t *testing.T) {
	_, err := runApp(t, "mint", "format", "abc", "6")
	assert.Error(t, err)

	_, err = runApp(t, "mint", "format", "5", "-1")
	assert.Error(t, err)

	_, err = runApp(t, "mint", "format", "5")
	assert.Error(t, err)
}

// newRPCServer answers getTokenSupply with the given decimals.
func newRPCServer(t *testing.T, decimals int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "getTokenSupply", req.Method)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"context": map[string]any{"slot": 1},
				"value": map[string]any{
					"amount":         "1000000000",
					"decimals":       decimals,
					"uiAmount":       1000.0,
					"uiAmountString": "1000",
				},
			},
		})
	}))
}

func TestMintDecimalsCommand(t *testing.T) {
	server := newRPCServer(t, 6)
	defer server.Close()

	out, err := runApp(t, "mint", "decimals", "--rpc-url", server.URL, usdcMint)
	require.NoError(t, err)
	assert.Equal(t, "6", strings.TrimSpace(out))

	out, err = runApp(t, "mint", "decimals", "--rpc-url", server.URL, "--json", usdcMint)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mint":"`+usdcMint+`","decimals":6}`, strings.TrimSpace(out))
}

func TestMintDecimalsCommand_InvalidMint(t *testing.T) {
	server := newRPCServer(t, 6)
	defer server.Close()

	_, err := runApp(t, "mint", "decimals", "--rpc-url", server.URL, "not-a-mint")
	assert.Error(t, err)
}

func TestSubscriptionCreateCommand(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/streams", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"subscriptionId":"sub-123"}`))
	}))
	defer server.Close()

	out, err := runApp(t, "subscription", "create",
		"--api-key", "secret",
		"--api-url", server.URL,
		"--min-amount", "100",
		usdcMint,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Created subscription: sub-123")
	assert.Equal(t, "Bearer secret", gotAuth)

	filters := gotBody["filters"].(map[string]any)
	assert.Equal(t, usdcMint, filters["mint"].(map[string]any)["value"])
	assert.Equal(t, float64(100), filters["amount"].(map[string]any)["value"])
}

func TestSubscriptionCreateCommand_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	_, err := runApp(t, "subscription", "create", "--api-key", "bad", "--api-url", server.URL, usdcMint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSubscriptionDeleteCommand(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	out, err := runApp(t, "subscription", "delete", "--api-key", "secret", "--api-url", server.URL, "sub-123")
	require.NoError(t, err)
	assert.Equal(t, "/v1/streams/sub-123", gotPath)
	assert.Contains(t, out, "Deleted subscription: sub-123")
}

func TestSubscriptionCommands_RequireArgs(t *testing.T) {
	_, err := runApp(t, "subscription", "delete", "--api-key", "secret")
	assert.Error(t, err)

	_, err = runApp(t, "subscription", "create", "--api-key", "secret")
	assert.Error(t, err)
}
