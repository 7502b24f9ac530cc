// Package storefront is the client SDK: it drives the state store and sends
// every write through the serialized request queue.
package storefront

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/appstate"
	"storefront/internal/domain"
	"storefront/internal/reqqueue"
)

type Client struct {
	store  *appstate.Store
	queue  *reqqueue.Queue
	logger *slog.Logger
}

// New wires a client to store and queue. Passing a nil logger uses slog.Default.
func New(store *appstate.Store, queue *reqqueue.Queue, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{store: store, queue: queue, logger: logger}
}

func (c *Client) State() appstate.State { return c.store.State() }

func (c *Client) token() string {
	if s := c.store.State().Session; s != nil {
		return s.Token
	}
	return ""
}

// send runs req through the queue and records the request lifecycle in the
// store. On failure the returned error is an *Error with a user-facing message.
func (c *Client) send(ctx context.Context, req reqqueue.Request, fallback string) (*reqqueue.Response, error) {
	c.store.Dispatch(appstate.RequestStart{})

	resp, err := c.queue.Enqueue(req).Wait(ctx)
	if err != nil {
		return nil, c.fail(err, fallback)
	}
	return resp, nil
}

func (c *Client) fail(err error, fallback string) error {
	msg := userMessage(err, fallback)
	c.store.Dispatch(appstate.RequestFail{Message: msg})
	return &Error{Message: msg, Err: err}
}

func (c *Client) Login(ctx context.Context, email, password string) (appstate.Session, error) {
	return c.authenticate(ctx, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	}, fallbackLogin)
}

func (c *Client) Register(ctx context.Context, name, email, password string) (appstate.Session, error) {
	return c.authenticate(ctx, "/api/users", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, fallbackRegister)
}

func (c *Client) authenticate(ctx context.Context, path string, body any, fallback string) (appstate.Session, error) {
	resp, err := c.send(ctx, reqqueue.Request{Method: http.MethodPost, Path: path, Body: body}, fallback)
	if err != nil {
		return appstate.Session{}, err
	}
	var sess appstate.Session
	if err := resp.Decode(&sess); err != nil {
		return appstate.Session{}, c.fail(err, fallback)
	}
	c.store.Dispatch(appstate.UserLogin{Session: sess})
	c.store.Dispatch(appstate.RequestSuccess{})
	return sess, nil
}

// Logout clears the local session and cart. The server-side session is
// revoked on a best-effort basis.
func (c *Client) Logout(ctx context.Context) {
	if tok := c.token(); tok != "" {
		p := c.queue.Enqueue(reqqueue.Request{Method: http.MethodPost, Path: "/api/users/logout", BearerToken: tok})
		if _, err := p.Wait(ctx); err != nil {
			c.logger.Warn("server logout failed", "err", err)
		}
	}
	c.store.Dispatch(appstate.UserLogout{})
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileInput) (appstate.Session, error) {
	resp, err := c.send(ctx, reqqueue.Request{
		Method:      http.MethodPut,
		Path:        "/api/users/profile",
		Body:        in,
		BearerToken: c.token(),
	}, fallbackProfile)
	if err != nil {
		return appstate.Session{}, err
	}

	var updated appstate.Session
	if err := resp.Decode(&updated); err != nil {
		return appstate.Session{}, c.fail(err, fallbackProfile)
	}
	st := c.store.Dispatch(appstate.UpdateUserProfile{Patch: patchFrom(updated)})
	c.store.Dispatch(appstate.RequestSuccess{})
	if st.Session == nil {
		return updated, nil
	}
	return *st.Session, nil
}

// patchFrom carries over the fields the server actually sent.
func patchFrom(s appstate.Session) appstate.ProfilePatch {
	var p appstate.ProfilePatch
	if s.ID != "" {
		p.ID = &s.ID
	}
	if s.Name != "" {
		p.Name = &s.Name
	}
	if s.Email != "" {
		p.Email = &s.Email
	}
	p.IsAdmin = &s.IsAdmin
	if s.Token != "" {
		p.Token = &s.Token
	}
	if !s.ExpiresAt.IsZero() {
		p.ExpiresAt = &s.ExpiresAt
	}
	return p
}

// AddToCart validates qty against the product's stock before touching the
// cart. Invalid quantities never reach the network.
func (c *Client) AddToCart(p Product, qty int) error {
	if qty <= 0 || qty > p.CountInStock {
		c.store.Dispatch(appstate.RequestFail{Message: msgInvalidQuantity})
		return &Error{Message: msgInvalidQuantity, Err: domain.ErrValidation}
	}
	c.store.Dispatch(appstate.AddToCart{Line: appstate.CartLine{
		ProductID:    p.ID,
		Name:         p.Name,
		Image:        p.Image,
		Price:        p.Price,
		Quantity:     qty,
		CountInStock: p.CountInStock,
	}})
	return nil
}

func (c *Client) RemoveFromCart(productID string) {
	c.store.Dispatch(appstate.RemoveFromCart{ProductID: productID})
}

func (c *Client) SaveShippingAddress(a domain.ShippingAddress) {
	c.store.Dispatch(appstate.SaveShippingAddress{Address: a})
}

func (c *Client) SavePaymentMethod(method string) {
	c.store.Dispatch(appstate.SavePaymentMethod{Method: method})
}

func (c *Client) ClearCart() { c.store.Dispatch(appstate.ClearCart{}) }

func (c *Client) ResetError() { c.store.Dispatch(appstate.ResetError{}) }

// CreateOrder places an order for the current cart and clears the cart's
// items once the server accepts it.
func (c *Client) CreateOrder(ctx context.Context) (Order, error) {
	cart := c.store.State().Cart
	prices := PricesFor(cart)

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, l := range cart.Items {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Image:     l.Image,
			Price:     l.Price,
			Qty:       l.Quantity,
		})
	}

	resp, err := c.send(ctx, reqqueue.Request{
		Method: http.MethodPost,
		Path:   "/api/orders",
		Body: orderRequest{
			OrderItems:      items,
			ShippingAddress: cart.ShippingAddress,
			PaymentMethod:   cart.PaymentMethod,
			ItemsPrice:      prices.Items,
			TaxPrice:        prices.Tax,
			ShippingPrice:   prices.Shipping,
			TotalPrice:      prices.Total,
		},
		BearerToken: c.token(),
	}, fallbackOrder)
	if err != nil {
		return Order{}, err
	}

	var o Order
	if err := resp.Decode(&o); err != nil {
		return Order{}, c.fail(err, fallbackOrder)
	}
	c.store.Dispatch(appstate.ClearCart{})
	c.store.Dispatch(appstate.RequestSuccess{})
	return o, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	resp, err := c.send(ctx, reqqueue.Request{
		Method:      http.MethodGet,
		Path:        "/api/orders/myorders",
		BearerToken: c.token(),
	}, fallbackOrders)
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := resp.Decode(&orders); err != nil {
		return nil, c.fail(err, fallbackOrders)
	}
	c.store.Dispatch(appstate.RequestSuccess{})
	return orders, nil
}

// Products fetches one catalogue page directly, outside the queue. It does
// not touch the loading or error state.
func (c *Client) Products(ctx context.Context, keyword string, page int) (ProductPage, error) {
	q := url.Values{}
	if kw := strings.TrimSpace(keyword); kw != "" {
		q.Set("keyword", kw)
	}
	if page > 0 {
		q.Set("pageNumber", strconv.Itoa(page))
	}
	path := "/api/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out ProductPage
	if err := c.get(ctx, path, &out); err != nil {
		return ProductPage{}, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	var out Product
	if err := c.get(ctx, "/api/products/"+url.PathEscape(id), &out); err != nil {
		return Product{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	resp, err := c.queue.Do(ctx, reqqueue.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &Error{Message: userMessage(err, fallbackProducts), Err: err}
	}
	if err := resp.Decode(dst); err != nil {
		return &Error{Message: fallbackProducts, Err: err}
	}
	return nil
}
