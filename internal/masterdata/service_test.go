package masterdata

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lensworks/internal/sales/pricing"
	"github.com/lensworks/lensworks/internal/shared"
)

type mockRepository struct {
	prices   []pricing.PriceRecord
	options  map[OptionKind][]Option
	fittings map[int64]decimal.Decimal
	listed   int
}

func (m *mockRepository) LookupPrice(ctx context.Context, lensID, coatingID int64) (pricing.PriceRecord, error) {
	for _, p := range m.prices {
		if p.LensID == lensID && p.CoatingID == coatingID {
			return p, nil
		}
	}
	return pricing.PriceRecord{}, shared.ErrNotFound
}

func (m *mockRepository) GetPrice(ctx context.Context, id int64) (pricing.PriceRecord, error) {
	for _, p := range m.prices {
		if p.ID == id {
			return p, nil
		}
	}
	return pricing.PriceRecord{}, shared.ErrNotFound
}

func (m *mockRepository) ComponentPrice(ctx context.Context, kind OptionKind, id int64) (decimal.Decimal, error) {
	if p, ok := m.fittings[id]; ok && kind == KindFittings {
		return p, nil
	}
	return decimal.Zero, shared.ErrNotFound
}

func (m *mockRepository) ListOptions(ctx context.Context, kind OptionKind) ([]Option, error) {
	m.listed++
	return m.options[kind], nil
}

func newTestRouter(repo Repository) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	r := chi.NewRouter()
	r.Route("/masterdata", h.MountRoutes)
	return r
}

func TestServiceOptionsRejectsUnknownKind(t *testing.T) {
	svc := NewService(&mockRepository{})
	_, err := svc.Options(context.Background(), "frames")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceFittingPrice(t *testing.T) {
	svc := NewService(&mockRepository{fittings: map[int64]decimal.Decimal{4: decimal.NewFromInt(150)}})
	price, err := svc.FittingPrice(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(150)))

	_, err = svc.TintingPrice(context.Background(), 4)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLookupPriceHandler(t *testing.T) {
	repo := &mockRepository{prices: []pricing.PriceRecord{{ID: 11, LensID: 1, CoatingID: 2, Price: decimal.NewFromInt(1200)}}}
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/lens-prices?lensId=1&coatingId=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                `json:"success"`
		Data    pricing.PriceRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(11), body.Data.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/lens-prices?lensId=1&coatingId=3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no price configured")
}

func TestLookupPriceHandlerRequiresIDs(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&mockRepository{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/lens-prices?lensId=1", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "coatingId")
}

func TestListOptionsHandler(t *testing.T) {
	price := decimal.NewFromInt(50)
	repo := &mockRepository{options: map[OptionKind][]Option{
		KindTintings: {{ID: 1, Name: "Grey 50%", Price: &price}},
	}}
	rec := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/options/tintings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Grey 50%")

	rec = httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/masterdata/options/frames", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionsReadThroughEveryCall(t *testing.T) {
	price := decimal.NewFromInt(50)
	repo := &mockRepository{options: map[OptionKind][]Option{
		KindTintings: {{ID: 6, Name: "Grey", Price: &price}},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Options(ctx, KindTintings)
	require.NoError(t, err)
	opts, err := svc.Options(ctx, KindTintings)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listed)
	require.Len(t, opts, 1)
	assert.True(t, opts[0].Price.Equal(price))
}
