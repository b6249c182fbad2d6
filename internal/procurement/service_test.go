package procurement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

type memoryProcRepo struct {
	pos     map[int64]PurchaseOrder
	poLines map[int64][]POLine
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		pos:     make(map[int64]PurchaseOrder),
		poLines: make(map[int64][]POLine),
	}
}

func (r *memoryProcRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	return po, append([]POLine(nil), r.poLines[id]...), nil
}

func seededRepo() *memoryProcRepo {
	repo := newMemoryProcRepo()
	repo.pos[7] = PurchaseOrder{
		ID:           7,
		Number:       12,
		SupplierID:   3,
		Status:       POStatusIssued,
		IssuedAt:     time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		ExpectedDate: time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC),
		Total:        decimal.RequireFromString("25.50"),
	}
	repo.poLines[7] = []POLine{{
		ID:         1,
		POID:       7,
		MaterialID: 4,
		Qty:        decimal.NewFromInt(3),
		UnitPrice:  decimal.RequireFromString("8.50"),
		Subtotal:   decimal.RequireFromString("25.50"),
		State:      LineStatePending,
	}}
	return repo
}

func TestGetOrderReturnsLinesAndCode(t *testing.T) {
	svc := NewService(seededRepo())

	detail, err := svc.GetOrder(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "OC-000012", detail.Code)
	require.Len(t, detail.Lines, 1)
	require.True(t, detail.Total.Equal(detail.Lines[0].Subtotal))
}

func TestGetOrderErrors(t *testing.T) {
	svc := NewService(newMemoryProcRepo())

	_, err := svc.GetOrder(context.Background(), 0)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.GetOrder(context.Background(), 99)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestFormatNumberPadsToSixDigits(t *testing.T) {
	require.Equal(t, "OC-000001", FormatNumber(1))
	require.Equal(t, "OC-1234567", FormatNumber(1234567))
}

func TestHandlerGetOrder(t *testing.T) {
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(seededRepo()))
	router := chi.NewRouter()
	handler.MountRoutes(router)

	cases := []struct {
		path   string
		status int
	}{
		{"/orders/7", http.StatusOK},
		{"/orders/8", http.StatusNotFound},
		{"/orders/abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, tc.status, rr.Code, tc.path)
	}
}
