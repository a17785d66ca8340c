package optimization

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	service := NewService(nil, 10, zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleFrontier(t *testing.T) {
	router := newTestRouter(t)

	t.Run("returns frontier for valid assets", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/frontier", FrontierRequest{Assets: testAssets()})

		require.Equal(t, http.StatusOK, rec.Code)

		var frontier Frontier
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frontier))
		assert.NotEmpty(t, frontier.Points)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/optimizer/frontier", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects too few assets", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/frontier", FrontierRequest{Assets: testAssets()[:1]})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "error")
	})
}

func TestHandleAllocation(t *testing.T) {
	router := newTestRouter(t)

	t.Run("returns allocation for valid request", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/allocation", AllocationRequest{
			Assets:          testAssets(),
			TargetReturnPct: 10.0,
			Amount:          10000,
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var alloc Allocation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alloc))
		assert.Len(t, alloc.Lines, 2)
		assert.True(t, alloc.Achievable)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/allocation", AllocationRequest{
			Assets:          testAssets(),
			TargetReturnPct: 10.0,
			Amount:          -5,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects out of range target with frontier", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/allocation", AllocationRequest{
			Assets:          testAssets(),
			TargetReturnPct: 99.0,
			Amount:          10000,
			UseFrontier:     true,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("clamps unreachable target without frontier", func(t *testing.T) {
		rec := postJSON(t, router, "/optimizer/allocation", AllocationRequest{
			Assets:          testAssets(),
			TargetReturnPct: 99.0,
			Amount:          10000,
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var alloc Allocation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alloc))
		assert.False(t, alloc.Achievable)
	})
}
