package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"trade_dashboard/internal/api"
	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/notify"
)

// Order ticket messages.
const (
	InvalidQuantityMessage = "Quantity must be a positive integer"
	InvalidPriceMessage    = "Price must be greater than 0"
	OrderFailedMessage     = "Failed to place order"
)

// OrderTicket is the raw order form as typed by the user.
type OrderTicket struct {
	Name  string           `json:"name"`
	Qty   string           `json:"qty"`
	Price string           `json:"price"`
	Mode  models.OrderMode `json:"mode"`
}

// MarginPreview is the margin shown next to an order ticket.
type MarginPreview struct {
	Qty     float64 `json:"qty"`
	Price   float64 `json:"price"`
	Margin  float64 `json:"margin"`
	Display string  `json:"display"`
}

// OrderPlacer submits orders to the backend. *api.Client satisfies it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req api.OrderRequest) api.Result
}

// OrderService validates order tickets, submits them and reports the
// outcome through the notification bus.
type OrderService struct {
	placer OrderPlacer
	notify notify.Publisher
	logger *logging.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(placer OrderPlacer, publisher notify.Publisher, logger *logging.Logger) *OrderService {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &OrderService{
		placer: placer,
		notify: publisher,
		logger: logger.Component("orders"),
	}
}

// Place validates t and submits it. Invalid tickets never reach the backend.
// Every outcome is also published as a toast.
func (s *OrderService) Place(ctx context.Context, t OrderTicket) error {
	req, err := ValidateTicket(t)
	if err != nil {
		s.notify.Emit(err.Message, models.SeverityError)
		return err
	}

	res := s.placer.PlaceOrder(ctx, req)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = OrderFailedMessage
		}
		s.logger.Warn().
			Str("name", req.Name).
			Str("mode", string(req.Mode)).
			Int("status", res.StatusCode).
			Str("reason", res.Message).
			Msg("order rejected")
		s.notify.Emit(msg, models.SeverityError)

		kind := res.Kind
		if kind == nil {
			kind = apperrors.ErrRejected
		}
		return apperrors.New(kind, msg)
	}

	s.logger.Info().Str("name", req.Name).Str("mode", string(req.Mode)).Int("qty", req.Qty).Msg("order placed")
	s.notify.Emit(placedMessage(req), models.SeveritySuccess)
	return nil
}

func placedMessage(req api.OrderRequest) string {
	side := "Buy"
	if req.Mode == models.OrderModeSell {
		side = "Sell"
	}
	return fmt.Sprintf("%s order placed for %s", side, req.Name)
}

// ValidateTicket turns a ticket into a backend request. Quantity must be a
// whole number of at least one and price must be positive.
func ValidateTicket(t OrderTicket) (api.OrderRequest, *apperrors.AppError) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return api.OrderRequest{}, apperrors.ValidationField("name", "Stock name is required")
	}

	mode := models.OrderMode(strings.ToUpper(strings.TrimSpace(string(t.Mode))))
	if mode != models.OrderModeBuy && mode != models.OrderModeSell {
		return api.OrderRequest{}, apperrors.ValidationField("mode", "Order mode must be BUY or SELL")
	}

	qty, err := strconv.ParseFloat(strings.TrimSpace(t.Qty), 64)
	if err != nil || qty < 1 || qty != math.Trunc(qty) || qty > math.MaxInt32 {
		return api.OrderRequest{}, apperrors.ValidationField("qty", InvalidQuantityMessage)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(t.Price), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return api.OrderRequest{}, apperrors.ValidationField("price", InvalidPriceMessage)
	}

	return api.OrderRequest{Name: name, Qty: int(qty), Price: price, Mode: mode}, nil
}

// Preview computes the margin for the ticket as typed. Unparseable fields
// count as zero.
func Preview(qty, price string) MarginPreview {
	q := parseOrZero(qty)
	p := parseOrZero(price)
	margin := MarginRequired(q, p)
	return MarginPreview{
		Qty:     q,
		Price:   p,
		Margin:  margin,
		Display: "₹" + Fixed2(margin),
	}
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
