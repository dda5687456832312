package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalogapp/pkg/domain"
)

// DefaultBaseURL is the public catalog the storefront talks to.
const DefaultBaseURL = "https://dummyjson.com"

const (
	defaultTimeout = 10 * time.Second
	defaultLimit   = 30
)

// TokenSource returns the bearer token to attach to a request. An empty
// token sends no Authorization header.
type TokenSource func() string

// Client calls the remote catalog over HTTP, attaching the session token to
// every request when one is present. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource attaches the session token to every catalog request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// APIError represents a catalog error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a catalog 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient constructs a catalog client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource replaces the token source after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token string
	User  domain.User
}

// Login exchanges credentials for a bearer token and the user profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	payload := map[string]string{"username": username, "password": password}
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", payload, &resp); err != nil {
		return LoginResult{}, err
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if strings.TrimSpace(token) == "" {
		return LoginResult{}, errors.New("catalog: login response carried no token")
	}
	return LoginResult{Token: token, User: resp.User()}, nil
}

// ListProducts returns a page of products. A non-empty search uses the
// search endpoint. limit <= 0 means 30, skip < 0 means 0.
func (c *Client) ListProducts(ctx context.Context, limit, skip int, search string) (domain.ProductPage, error) {
	path := "/products"
	query := pageQuery(limit, skip)
	if q := strings.TrimSpace(search); q != "" {
		path = "/products/search"
		query.Set("q", q)
	}
	return c.page(ctx, path, query)
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	path := fmt.Sprintf("/products/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Categories returns the category slugs.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var raw []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/products/categories", nil, &raw); err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(raw))
	for _, item := range raw {
		var slug string
		if err := json.Unmarshal(item, &slug); err == nil {
			slugs = append(slugs, slug)
			continue
		}
		var cat struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &cat); err != nil {
			return nil, fmt.Errorf("catalog: decode category: %w", err)
		}
		if cat.Slug == "" {
			cat.Slug = cat.Name
		}
		slugs = append(slugs, cat.Slug)
	}
	return slugs, nil
}

// ProductsByCategory returns a page of products in one category.
func (c *Client) ProductsByCategory(ctx context.Context, category string, limit, skip int) (domain.ProductPage, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.ProductPage{}, errors.New("catalog: category is required")
	}
	return c.page(ctx, "/products/category/"+url.PathEscape(category), pageQuery(limit, skip))
}

func (c *Client) page(ctx context.Context, path string, query url.Values) (domain.ProductPage, error) {
	var page domain.ProductPage
	if err := c.doJSON(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &page); err != nil {
		return domain.ProductPage{}, err
	}
	if page.Products == nil {
		page.Products = []domain.Product{}
	}
	return page, nil
}

func pageQuery(limit, skip int) url.Values {
	if limit <= 0 {
		limit = defaultLimit
	}
	if skip < 0 {
		skip = 0
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))
	return q
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := strings.TrimSpace(errResp.Message)
		if msg == "" {
			msg = strings.TrimSpace(errResp.Error)
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return nil
}

type loginResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Gender       string `json:"gender"`
	Image        string `json:"image"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Token        string `json:"token"`
}

func (r loginResponse) User() domain.User {
	return domain.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		Image:     r.Image,
	}
}
