package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"catalogapp/internal/ratelimit"
	"catalogapp/internal/util"
	"catalogapp/pkg/domain"
	"catalogapp/services/storefront/internal/app"
	"catalogapp/services/storefront/internal/catalogclient"
)

// Catalog is the read side of the remote catalog used by product routes.
type Catalog interface {
	ListProducts(ctx context.Context, limit, skip int, search string) (domain.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	ProductsByCategory(ctx context.Context, category string, limit, skip int) (domain.ProductPage, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Catalog Catalog
	// LoginLimiter throttles login attempts per client IP. Nil disables it.
	LoginLimiter   *ratelimit.FixedWindowLimiter
	AllowedOrigins []string
}

// Server exposes the storefront state to the presentation layer.
type Server struct {
	app          *app.App
	catalog      Catalog
	loginLimiter *ratelimit.FixedWindowLimiter
	origins      []string
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	s := &Server{
		app:          cfg.App,
		catalog:      cfg.Catalog,
		loginLimiter: cfg.LoginLimiter,
		origins:      cfg.AllowedOrigins,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("storefront",
			util.WithSecurityHeaders(
				util.WithCORS(s.origins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// session
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/session/login", s.handleLogin)
	s.mux.HandleFunc("/api/session/logout", s.handleLogout)

	// favorites
	s.mux.HandleFunc("/api/favorites", s.handleFavorites)
	s.mux.HandleFunc("/api/favorites/products", s.handleFavoriteProducts)
	s.mux.HandleFunc("/api/favorites/", s.handleFavoriteByID)

	// catalog
	s.mux.HandleFunc("/api/products", s.handleProducts)
	s.mux.HandleFunc("/api/products/categories", s.handleCategories)
	s.mux.HandleFunc("/api/products/category", http.NotFound)
	s.mux.HandleFunc("/api/products/category/", s.handleProductsByCategory)
	s.mux.HandleFunc("/api/products/", s.handleProductByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Session())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "session.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "session.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := s.app.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		s.audit(r, "session.login", "success", "user_id", session.User.ID)
		writeJSON(w, http.StatusOK, session)
	case errors.Is(err, app.ErrMissingCredentials):
		s.audit(r, "session.login", "fail", "reason", "missing_credentials")
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAlreadyAuthenticated), errors.Is(err, app.ErrLoginSuperseded):
		s.audit(r, "session.login", "fail", "reason", err.Error())
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.audit(r, "session.login", "fail", "reason", err.Error())
		status, retryable := catalogStatus(err)
		writeJSON(w, status, loginFailure{Error: session.Error, Retryable: retryable, Session: session})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	session := s.app.Logout(r.Context())
	s.audit(r, "session.logout", "success")
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newFavoritesResponse(s.app.Favorites()))
	case http.MethodDelete:
		s.app.ClearFavorites(r.Context())
		writeJSON(w, http.StatusOK, newFavoritesResponse(s.app.Favorites()))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFavoriteByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/favorites/")
	parts := strings.SplitN(path, "/", 2)
	id, ok := parseProductID(parts[0])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	// Handle /api/favorites/{id}/toggle
	if len(parts) == 2 {
		if parts[1] != "toggle" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		now := s.app.ToggleFavorite(r.Context(), id)
		resp := newFavoritesResponse(s.app.Favorites())
		writeJSON(w, http.StatusOK, toggleResponse{ID: id, IsFavorite: now, favoritesResponse: resp})
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.app.AddFavorite(r.Context(), id)
	case http.MethodDelete:
		s.app.RemoveFavorite(r.Context(), id)
	default:
		methodNotAllowed(w)
		return
	}
	resp := newFavoritesResponse(s.app.Favorites())
	writeJSON(w, http.StatusOK, toggleResponse{ID: id, IsFavorite: s.app.IsFavorite(id), favoritesResponse: resp})
}

func (s *Server) handleFavoriteProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	products, err := s.app.FavoriteProducts(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	items := s.annotate(products)
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, skip, ok := parsePaging(w, r)
	if !ok {
		return
	}
	page, err := s.catalog.ListProducts(r.Context(), limit, skip, r.URL.Query().Get("q"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.annotatePage(page))
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, ok := parseProductID(strings.TrimPrefix(r.URL.Path, "/api/products/"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.annotateOne(product))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	categories, err := s.catalog.Categories(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": categories, "count": len(categories)})
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	category := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/products/category/"))
	if category == "" || strings.Contains(category, "/") {
		http.NotFound(w, r)
		return
	}
	limit, skip, ok := parsePaging(w, r)
	if !ok {
		return
	}
	page, err := s.catalog.ProductsByCategory(r.Context(), category, limit, skip)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.annotatePage(page))
}

func (s *Server) annotateOne(p domain.Product) productView {
	price := p.DisplayPrice()
	return productView{
		Product:        p,
		IsFavorite:     s.app.IsFavorite(p.ID),
		DisplayPrice:   price,
		FormattedPrice: domain.FormatUSD(price),
		HasDiscount:    p.HasDiscount(),
	}
}

func (s *Server) annotate(products []domain.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, s.annotateOne(p))
	}
	return out
}

func (s *Server) annotatePage(page domain.ProductPage) pageResponse {
	return pageResponse{
		Products: s.annotate(page.Products),
		Total:    page.Total,
		Skip:     page.Skip,
		Limit:    page.Limit,
		HasMore:  page.HasMore(),
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func parseProductID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parsePaging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	limit, err := parseNonNegative(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, 0, false
	}
	skip, err := parseNonNegative(q.Get("skip"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid skip")
		return 0, 0, false
	}
	return limit, skip, true
}

func parseNonNegative(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes the shared error envelope. Only throttled requests are
// worth retrying unchanged.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Retryable: status == http.StatusTooManyRequests})
}

// catalogStatus maps a catalog failure to the status returned to the
// presentation layer and whether retrying may help.
func catalogStatus(err error) (int, bool) {
	var apiErr *catalogclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Status >= http.StatusInternalServerError
	}
	return http.StatusBadGateway, true
}

func writeCatalogError(w http.ResponseWriter, err error) {
	status, retryable := catalogStatus(err)
	msg := "catalog service unavailable"
	var apiErr *catalogclient.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Retryable: retryable})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("session_event", logAttrs...)
		return
	}
	logger.Warn("session_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	retry := int(math.Ceil(limiter.RetryAfter().Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginFailure struct {
	Error     string      `json:"error"`
	Retryable bool        `json:"retryable"`
	Session   app.Session `json:"session"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type favoritesResponse struct {
	Items []int64 `json:"items"`
	Count int     `json:"count"`
}

func newFavoritesResponse(ids []int64) favoritesResponse {
	return favoritesResponse{Items: ids, Count: len(ids)}
}

type toggleResponse struct {
	ID         int64 `json:"id"`
	IsFavorite bool  `json:"isFavorite"`
	favoritesResponse
}

type productView struct {
	domain.Product
	IsFavorite     bool    `json:"isFavorite"`
	DisplayPrice   float64 `json:"displayPrice"`
	FormattedPrice string  `json:"formattedPrice"`
	HasDiscount    bool    `json:"hasDiscount"`
}

type pageResponse struct {
	Products []productView `json:"products"`
	Total    int           `json:"total"`
	Skip     int           `json:"skip"`
	Limit    int           `json:"limit"`
	HasMore  bool          `json:"hasMore"`
}
