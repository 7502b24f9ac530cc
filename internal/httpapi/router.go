package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"storefront/internal/service"
	"storefront/internal/throttle"
)

// RateLimits configures the per-client request caps. A zero count disables that limiter.
type RateLimits struct {
	API    int
	Auth   int
	Window time.Duration
}

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth    *service.AuthService
	Admin   *service.AdminService
	Catalog *service.CatalogService
	Orders  *service.OrderService

	// Guard throttles login attempts per client address.
	Guard       *throttle.Guard
	RateLimits  RateLimits
	CORSOrigins []string
	Metrics     *Metrics

	// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
	// Empty means every request is keyed by its direct peer address.
	TrustedProxies []netip.Prefix

	// Background bounds the limiter janitors. Nil means no janitors run.
	Background context.Context
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:      logger,
		isProd:      opts.IsProd,
		dbPing:      opts.DBPing,
		authSvc:     opts.Auth,
		adminSvc:    opts.Admin,
		catalogSvc:  opts.Catalog,
		ordersSvc:   opts.Orders,
		guard:       opts.Guard,
		metrics:     opts.Metrics,
		apiLimiter:  newIPLimiter(opts.RateLimits.API, opts.RateLimits.Window),
		authLimiter: newIPLimiter(opts.RateLimits.Auth, opts.RateLimits.Window),

		trustedProxies: opts.TrustedProxies,
	}
	if opts.Background != nil {
		api.apiLimiter.startJanitor(opts.Background, time.Minute)
		api.authLimiter.startJanitor(opts.Background, time.Minute)
	}

	rootMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	rootMux.HandleFunc("GET /healthz", api.handleHealthz)
	if opts.Metrics != nil {
		rootMux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	apiMux.HandleFunc("GET /api/health", api.handleHealth)

	if api.authSvc == nil {
		apiMux.HandleFunc("/api/users/", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /api/users/login", api.authRateLimit(api.handleLogin))
		apiMux.HandleFunc("POST /api/users/login/google", api.authRateLimit(api.handleLoginGoogle))
		apiMux.HandleFunc("POST /api/users/login/apple", api.authRateLimit(api.handleLoginApple))
		apiMux.HandleFunc("POST /api/users", api.authRateLimit(api.handleRegister))
		apiMux.HandleFunc("POST /api/users/logout", api.requireAuth(api.handleLogout))
		apiMux.HandleFunc("GET /api/users/profile", api.requireAuth(api.handleProfileGet))
		apiMux.HandleFunc("PUT /api/users/profile", api.requireAuth(api.handleProfileUpdate))
		apiMux.HandleFunc("POST /api/users/admin", api.requireAdmin(api.handleCreateAdmin))
		if api.adminSvc != nil {
			apiMux.HandleFunc("GET /api/users", api.requireAdmin(api.handleUsersList))
			apiMux.HandleFunc("DELETE /api/users/{id}", api.requireAdmin(api.handleUserDelete))
		}
	}

	if api.catalogSvc != nil {
		apiMux.HandleFunc("GET /api/products", api.handleProductsList)
		apiMux.HandleFunc("GET /api/products/featured", api.handleProductsFeatured)
		apiMux.HandleFunc("GET /api/products/{id}", api.handleProductGet)
		if api.authSvc != nil {
			apiMux.HandleFunc("POST /api/products", api.requireAdmin(api.handleProductCreate))
			apiMux.HandleFunc("PUT /api/products/{id}", api.requireAdmin(api.handleProductUpdate))
			apiMux.HandleFunc("DELETE /api/products/{id}", api.requireAdmin(api.handleProductDelete))
		}
	}

	if api.ordersSvc != nil && api.authSvc != nil {
		apiMux.HandleFunc("POST /api/orders", api.requireAuth(api.handleOrderCreate))
		apiMux.HandleFunc("GET /api/orders", api.requireAdmin(api.handleOrdersAll))
		apiMux.HandleFunc("GET /api/orders/myorders", api.requireAuth(api.handleOrdersMine))
		apiMux.HandleFunc("GET /api/orders/{id}", api.requireAuth(api.handleOrderGet))
		apiMux.HandleFunc("PUT /api/orders/{id}/pay", api.requireAuth(api.handleOrderPay))
		apiMux.HandleFunc("PUT /api/orders/{id}/deliver", api.requireAdmin(api.handleOrderDeliver))
	}

	apiHandler := api.apiRateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleAPINotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	}))

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		rootMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = CORS(opts.CORSOrigins)(h)
	h = SecurityHeaders()(h)
	h = RequestLogger(logger, opts.Metrics)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "Not implemented")
}

func handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "Not Found - "+r.URL.Path)
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc    *service.AuthService
	adminSvc   *service.AdminService
	catalogSvc *service.CatalogService
	ordersSvc  *service.OrderService

	guard       *throttle.Guard
	metrics     *Metrics
	apiLimiter  *ipLimiter
	authLimiter *ipLimiter

	trustedProxies []netip.Prefix
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "OK", Timestamp: time.Now().UTC(), Database: "connected"}
	status := http.StatusOK

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			resp.Status, resp.Database = "DEGRADED", "disconnected"
			status = http.StatusServiceUnavailable
		}
	} else {
		resp.Database = "not configured"
	}

	WriteJSON(w, status, resp)
}
