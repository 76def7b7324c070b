package orders

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lensworks/internal/shared"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Errors  []shared.FieldError `json:"errors"`
	Message string              `json:"message"`
}

func newTestRouter(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc)
	r := chi.NewRouter()
	r.Route("/sales", h.MountRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHandlerCreateAndShow(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	rec, body := doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, body.Success)

	var created struct {
		ID                 int64  `json:"id"`
		OrderNo            string `json:"orderNo"`
		Status             string `json:"status"`
		RightSpherical     string `json:"rightSpherical"`
		FinalTotal         string `json:"finalTotal"`
		AllowedTransitions []struct {
			Status string `json:"status"`
			Label  string `json:"label"`
		} `json:"allowedTransitions"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "SO-240110-0001", created.OrderNo)
	assert.Equal(t, "DRAFT", created.Status)
	assert.Equal(t, "-1.25", created.RightSpherical)
	assert.Equal(t, "675", created.FinalTotal)
	require.Len(t, created.AllowedTransitions, 2)
	assert.Equal(t, "Confirm", created.AllowedTransitions[0].Label)

	rec, _ = doJSON(t, router, http.MethodGet, "/sales/orders/1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/sales/orders/99", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
}

func TestHandlerCreateAcceptsNumericMeasurements(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	raw := map[string]any{
		"customerId": 1, "orderDate": "2024-01-10",
		"lensId": 1, "categoryId": 2, "typeId": 3, "diaId": 4, "fittingId": 5, "tintingId": 6, "coatingId": 7,
		"leftEye": true, "leftSpherical": 20.0, "leftCylindrical": -6, "leftAxis": 0, "leftAdd": "4.00",
	}
	rec, _ := doJSON(t, router, http.MethodPost, "/sales/orders", raw, nil)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandlerValidationEnvelope(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	p := validPayload()
	p.RightEye = false
	p.DeliverySchedule = "2024-01-05T00:00"
	rec, body := doJSON(t, router, http.MethodPost, "/sales/orders", p, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, body.Success)

	fields := (&shared.ValidationError{Fields: body.Errors}).Map()
	assert.Contains(t, fields, "eyeSelection")
	assert.Equal(t, "delivery date cannot be before order date", fields["deliverySchedule"])
}

func TestHandlerIdempotentCreate(t *testing.T) {
	env := newTestEnv(t, true)
	env.withIdempotency(t)
	router := newTestRouter(t, env)
	headers := map[string]string{IdempotencyHeader: "retry-me"}

	rec, _ := doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), headers)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, env.repo.count())
}

func TestHandlerAdvanceStatusConflict(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)
	rec, _ := doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPatch, "/sales/orders/1/status", map[string]string{"status": "IN_PRODUCTION"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, router, http.MethodPatch, "/sales/orders/1/status",
		map[string]string{"status": "READY_FOR_DISPATCH", "expectedStatus": "DRAFT"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, body.Message)
}

func TestHandlerPricingNotConfigured(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	p := validPayload()
	p.CoatingID = 8
	rec, body := doJSON(t, router, http.MethodPost, "/sales/orders/pricing", p, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, shared.ErrPriceNotConfigured.Error(), body.Message)
}

func TestHandlerCost(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	rec, body := doJSON(t, router, http.MethodPost, "/sales/pricing/cost",
		map[string]any{"customerId": 1, "priceRecordId": 100, "fittingId": 5, "quantity": 2}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res map[string]json.Number
	require.NoError(t, json.Unmarshal(body.Data, &res))
	// 1000 + 200 less 10%
	assert.Equal(t, "1080.00", res["finalTotal"].String())
}

func TestHandlerRejectsMalformedInput(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)

	req := httptest.NewRequest(http.MethodPost, "/sales/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/sales/orders/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)
	rec, _ := doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodDelete, "/sales/orders/1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Zero(t, env.repo.count())
}

func TestHandlerUpdateMergesPartialBody(t *testing.T) {
	env := newTestEnv(t, true)
	router := newTestRouter(t, env)
	rec, _ := doJSON(t, router, http.MethodPost, "/sales/orders", validPayload(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPut, "/sales/orders/1", map[string]any{"remark": "rush"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Remark         string `json:"remark"`
		RightSpherical string `json:"rightSpherical"`
		FinalTotal     string `json:"finalTotal"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, "rush", updated.Remark)
	assert.Equal(t, "-1.25", updated.RightSpherical)
	assert.Equal(t, "675", updated.FinalTotal)

	rec, _ = doJSON(t, router, http.MethodPut, "/sales/orders/1", []int{1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
