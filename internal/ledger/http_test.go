package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHandler(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Grant(context.Background(), "g1", "alice", 250)
	require.NoError(t, err)
	require.NoError(t, store.FinalizeHand(context.Background(), sampleRecord()))

	mux := http.NewServeMux()
	NewHTTPHandler(store).RegisterRoutes(mux)

	get := func(path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			req.Header.Set(UserHeader, user)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/ledger/balance?guild=g1", "").Code)

	rr := get("/api/ledger/balance?guild=g1", "alice")
	require.Equal(t, http.StatusOK, rr.Code)
	var bal map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bal))
	assert.Equal(t, float64(250), bal["chips"])

	rr = get("/api/ledger/hands/5f0c6c1e-hand", "alice")
	require.Equal(t, http.StatusOK, rr.Code)
	var hand map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hand))
	assert.Equal(t, "g1:c1", hand["table_id"])

	assert.Equal(t, http.StatusNotFound, get("/api/ledger/hands/nope", "alice").Code)
}
