package httpapi

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain"
)

type orderResponse struct {
	ID              string                 `json:"id"`
	User            orderUser              `json:"user"`
	OrderItems      []domain.OrderItem     `json:"order_items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	PaymentResult   *domain.PaymentResult  `json:"payment_result,omitempty"`
	ItemsPrice      float64                `json:"items_price"`
	TaxPrice        float64                `json:"tax_price"`
	ShippingPrice   float64                `json:"shipping_price"`
	TotalPrice      float64                `json:"total_price"`
	IsPaid          bool                   `json:"is_paid"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	IsDelivered     bool                   `json:"is_delivered"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

type orderUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := o.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	return orderResponse{
		ID:              o.ID,
		User:            orderUser{ID: o.UserID, Name: o.UserName},
		OrderItems:      items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentResult:   o.PaymentResult,
		ItemsPrice:      o.ItemsPrice,
		TaxPrice:        o.TaxPrice,
		ShippingPrice:   o.ShippingPrice,
		TotalPrice:      o.TotalPrice,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type createOrderRequest struct {
	OrderItems      []domain.OrderItem     `json:"order_items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	ItemsPrice      float64                `json:"items_price"`
	TaxPrice        float64                `json:"tax_price"`
	ShippingPrice   float64                `json:"shipping_price"`
	TotalPrice      float64                `json:"total_price"`
}

func (a *api) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	o, err := a.ordersSvc.Place(r.Context(), u, domain.OrderInput{
		Items:           req.OrderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      req.ItemsPrice,
		TaxPrice:        req.TaxPrice,
		ShippingPrice:   req.ShippingPrice,
		TotalPrice:      req.TotalPrice,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			a.logger.Error("create order", "err", err, "user_id", u.ID)
			WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to create order. Please try again.")
			return
		}
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (a *api) handleOrdersMine(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	orders, err := a.ordersSvc.Mine(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (a *api) handleOrdersAll(w http.ResponseWriter, r *http.Request) {
	orders, err := a.ordersSvc.All(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (a *api) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	o, err := a.ordersSvc.Get(r.Context(), u, r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

type paymentRequest struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (a *api) handleOrderPay(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req paymentRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	o, err := a.ordersSvc.Pay(r.Context(), u, r.PathValue("id"), domain.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.Payer.EmailAddress,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (a *api) handleOrderDeliver(w http.ResponseWriter, r *http.Request) {
	o, err := a.ordersSvc.Deliver(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		WriteError(w, http.StatusNotFound, "not_found", "Order not found")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "Not authorized to view this order")
	default:
		WriteDomainError(w, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
