package orders

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriflow/distriflow/internal/shared"
)

type fakeIdempotency struct {
	keys    map[string]bool
	deleted []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]bool)}
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestRouter(t *testing.T) (chi.Router, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo, 0.12), nil)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, repo
}

func doJSON(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "7")
	req.Header.Set("X-Actor-Role", "vendedor")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

const createBody = `{
	"client_id": 1,
	"payment_condition": "CONTADO",
	"lines": [{"product_id": 10, "quantity": 2, "unit_price": 100, "final_price": 90}]
}`

func TestCreateOrderEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"PENDIENTE"`)
	assert.Contains(t, rr.Body.String(), `"total_formatted"`)
}

func TestCreateOrderRequiresActor(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(createBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrderValidatesPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", `{"client_id": 1, "payment_condition": "CONTADO", "lines": []}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func newIdempotentRouter(t *testing.T) (chi.Router, *fakeIdempotency) {
	t.Helper()
	store := newFakeIdempotency()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(newFakeRepo(), 0.12), store)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, store
}

func doJSONKey(t *testing.T, router chi.Router, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "7")
	req.Header.Set("X-Actor-Role", "vendedor")
	req.Header.Set("X-Idempotency-Key", key)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateOrderIdempotencyKeyConflicts(t *testing.T) {
	router, _ := newIdempotentRouter(t)

	rr := doJSONKey(t, router, createBody, "key-1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSONKey(t, router, createBody, "key-1")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Duplicate Request")
}

func TestCreateOrderFailureReleasesIdempotencyKey(t *testing.T) {
	router, store := newIdempotentRouter(t)

	// Final price above unit price is rejected after the key is consumed.
	bad := `{
		"client_id": 1,
		"payment_condition": "CONTADO",
		"lines": [{"product_id": 10, "quantity": 1, "unit_price": 10, "final_price": 12}]
	}`
	rr := doJSONKey(t, router, bad, "key-retry")
	require.NotEqual(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []string{"key-retry"}, store.deleted)

	// A retry of the corrected request reuses the same key and succeeds.
	rr = doJSONKey(t, router, createBody, "key-retry")
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestChangeStatusEndpointRejectsSkip(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/orders/1/status", `{"status":"ENTREGADO"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Illegal Transition")
}

func TestChangeStatusEndpointHappyPath(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", createBody)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/orders/1/status", `{"status":"APROBADO"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"APROBADO"`)
}

func TestShowUnknownOrder(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/orders/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
