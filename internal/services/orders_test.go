package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_dashboard/internal/api"
	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/models"
)

type emitted struct {
	message  string
	severity models.Severity
}

type recordingPublisher struct {
	mu     sync.Mutex
	toasts []emitted
}

func (p *recordingPublisher) Emit(message string, severity models.Severity) int64 {
	return p.EmitFor(message, severity, 0)
}

func (p *recordingPublisher) EmitFor(message string, severity models.Severity, d time.Duration) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, emitted{message, severity})
	return int64(len(p.toasts))
}

type stubPlacer struct {
	calls []api.OrderRequest
	res   api.Result
}

func (s *stubPlacer) PlaceOrder(ctx context.Context, req api.OrderRequest) api.Result {
	s.calls = append(s.calls, req)
	return s.res
}

func TestPlaceRejectsInvalidTicketWithoutCall(t *testing.T) {
	tests := []struct {
		name   string
		ticket OrderTicket
		want   string
	}{
		{"zero quantity", OrderTicket{Name: "INFY", Qty: "0", Price: "10", Mode: models.OrderModeSell}, InvalidQuantityMessage},
		{"fractional quantity", OrderTicket{Name: "INFY", Qty: "1.5", Price: "10", Mode: models.OrderModeSell}, InvalidQuantityMessage},
		{"blank quantity", OrderTicket{Name: "INFY", Qty: "", Price: "10", Mode: models.OrderModeBuy}, InvalidQuantityMessage},
		{"zero price", OrderTicket{Name: "INFY", Qty: "2", Price: "0", Mode: models.OrderModeSell}, InvalidPriceMessage},
		{"negative price", OrderTicket{Name: "INFY", Qty: "2", Price: "-4", Mode: models.OrderModeBuy}, InvalidPriceMessage},
		{"infinite price", OrderTicket{Name: "INFY", Qty: "2", Price: "Infinity", Mode: models.OrderModeBuy}, InvalidPriceMessage},
		{"inf price", OrderTicket{Name: "INFY", Qty: "2", Price: "+Inf", Mode: models.OrderModeSell}, InvalidPriceMessage},
		{"nan price", OrderTicket{Name: "INFY", Qty: "2", Price: "NaN", Mode: models.OrderModeSell}, InvalidPriceMessage},
		{"infinite quantity", OrderTicket{Name: "INFY", Qty: "Inf", Price: "10", Mode: models.OrderModeSell}, InvalidQuantityMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			placer := &stubPlacer{res: api.Result{Success: true}}
			pub := &recordingPublisher{}
			svc := NewOrderService(placer, pub, nil)

			err := svc.Place(context.Background(), tc.ticket)

			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Empty(t, placer.calls)
			assert.Equal(t, []emitted{{tc.want, models.SeverityError}}, pub.toasts)
		})
	}
}

func TestPlaceSuccess(t *testing.T) {
	placer := &stubPlacer{res: api.Result{Success: true, StatusCode: 200}}
	pub := &recordingPublisher{}
	svc := NewOrderService(placer, pub, nil)

	err := svc.Place(context.Background(), OrderTicket{Name: "INFY", Qty: " 3 ", Price: "1500.5", Mode: "sell"})

	require.NoError(t, err)
	require.Len(t, placer.calls, 1)
	assert.Equal(t, api.OrderRequest{Name: "INFY", Qty: 3, Price: 1500.5, Mode: models.OrderModeSell}, placer.calls[0])
	assert.Equal(t, []emitted{{"Sell order placed for INFY", models.SeveritySuccess}}, pub.toasts)
}

func TestPlaceBuyMessage(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewOrderService(&stubPlacer{res: api.Result{Success: true}}, pub, nil)

	require.NoError(t, svc.Place(context.Background(), OrderTicket{Name: "TCS", Qty: "1", Price: "10", Mode: models.OrderModeBuy}))
	assert.Equal(t, "Buy order placed for TCS", pub.toasts[0].message)
}

func TestPlaceBackendRejection(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, api.PathNewOrder, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"Insufficient holdings"}`))
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, nil, api.Options{})
	pub := &recordingPublisher{}
	svc := NewOrderService(client, pub, nil)

	err := svc.Place(context.Background(), OrderTicket{Name: "INFY", Qty: "5", Price: "10", Mode: models.OrderModeSell})

	require.Error(t, err)
	assert.True(t, apperrors.IsRejected(err))
	assert.Equal(t, 1, hits)
	assert.Equal(t, []emitted{{"Insufficient holdings", models.SeverityError}}, pub.toasts)
}

func TestPlaceFailureFallback(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewOrderService(&stubPlacer{res: api.Result{Kind: apperrors.ErrTransport}}, pub, nil)

	err := svc.Place(context.Background(), OrderTicket{Name: "INFY", Qty: "5", Price: "10", Mode: models.OrderModeSell})

	assert.True(t, apperrors.IsTransport(err))
	assert.Equal(t, OrderFailedMessage, pub.toasts[0].message)
}

func TestPreview(t *testing.T) {
	p := Preview("10", "250")
	assert.InDelta(t, 500, p.Margin, 1e-9)
	assert.Equal(t, "₹500.00", p.Display)

	p = Preview("abc", "250")
	assert.Zero(t, p.Margin)
	assert.Equal(t, "₹0.00", p.Display)
}
