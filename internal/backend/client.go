// Package backend is the HTTP client of the marketplace backend: shop schedules,
// catalog pricing, remote cart, enquiries and orders.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"shopvisit/internal/model"
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RatePerSecond limits outbound requests; zero disables limiting.
	RatePerSecond float64
	Burst         int
}

// Client calls the marketplace REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// CartItemRequest adds an item to the authenticated cart.
type CartItemRequest struct {
	UserID    string `json:"user_id"`
	CatalogID string `json:"catalog_id"`
	VisitDate string `json:"visit_date,omitempty"`
	VisitTime string `json:"visit_time,omitempty"`
}

// CartItem is an item of the authenticated cart.
type CartItem struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CatalogID string `json:"catalog_id"`
}

// EnquiryRequest is the submit-enquiry payload.
type EnquiryRequest struct {
	UserID    string `json:"user_id"`
	CatalogID string `json:"catalog_id"`
	VendorID  string `json:"vendor_id"`
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
	Message   string `json:"message,omitempty"`
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	EnquiryID     string              `json:"enquiry_id"`
	UserID        string              `json:"user_id"`
	CatalogID     string              `json:"catalog_id"`
	VendorID      string              `json:"vendor_id"`
	VisitDate     string              `json:"visit_date"`
	VisitTime     string              `json:"visit_time"`
	SalePrice     decimal.Decimal     `json:"sale_price"`
	FinalPrice    decimal.Decimal     `json:"final_price"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

// NewClient constructs a client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c
}

// UseRedisCache configures optional Redis caching for schedule and catalog reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// GetOpenHours returns the weekly schedule of a shop.
func (c *Client) GetOpenHours(ctx context.Context, shopID string) ([]model.OpenHourEntry, error) {
	endpoint := fmt.Sprintf("%s/api/shops/%s/open-hours", c.baseURL, url.PathEscape(shopID))
	cacheKey := fmt.Sprintf("open_hours:%s", shopID)
	var wrap struct {
		OpenHours []model.OpenHourEntry `json:"open_hours"`
	}

	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.OpenHours, nil
	}

	if err := c.doGet(ctx, endpoint, "", &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.OpenHours, nil
}

// GetCatalog returns shop, vendor and pricing of a catalog item.
func (c *Client) GetCatalog(ctx context.Context, catalogID string) (*model.CatalogInfo, error) {
	endpoint := fmt.Sprintf("%s/api/catalogs/%s", c.baseURL, url.PathEscape(catalogID))
	cacheKey := fmt.Sprintf("catalog:%s", catalogID)
	var info model.CatalogInfo

	if c.readCache(ctx, cacheKey, &info) {
		return &info, nil
	}

	if err := c.doGet(ctx, endpoint, "", &info); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, info)
	return &info, nil
}

// AddCartItem puts an item into the authenticated cart.
func (c *Client) AddCartItem(ctx context.Context, token string, req CartItemRequest) (*CartItem, error) {
	var item CartItem
	if err := c.doPost(ctx, c.baseURL+"/api/cart", token, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SubmitEnquiry creates an enquiry.
func (c *Client) SubmitEnquiry(ctx context.Context, token string, req EnquiryRequest) (*model.Enquiry, error) {
	var enquiry model.Enquiry
	if err := c.doPost(ctx, c.baseURL+"/api/enquiries", token, req, &enquiry); err != nil {
		return nil, err
	}
	return &enquiry, nil
}

// CreateOrder creates an order in a single request.
func (c *Client) CreateOrder(ctx context.Context, token string, req OrderRequest) (*model.Order, error) {
	var order model.Order
	if err := c.doPost(ctx, c.baseURL+"/api/orders", token, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// SetPaymentStatus toggles the payment status of an order and returns the updated order.
func (c *Client) SetPaymentStatus(ctx context.Context, token, orderID string) (*model.Order, error) {
	endpoint := fmt.Sprintf("%s/api/orders/%s/payment-status", c.baseURL, url.PathEscape(orderID))
	var order model.Order
	if err := c.doPost(ctx, endpoint, token, struct{}{}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListVendorOrders returns all orders of a vendor.
func (c *Client) ListVendorOrders(ctx context.Context, token, vendorID string) ([]model.Order, error) {
	endpoint := fmt.Sprintf("%s/api/vendors/%s/orders", c.baseURL, url.PathEscape(vendorID))
	var wrap struct {
		Orders []model.Order `json:"orders"`
	}
	if err := c.doGet(ctx, endpoint, token, &wrap); err != nil {
		return nil, err
	}
	return wrap.Orders, nil
}

// HealthCheck checks if the backend is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doGet(ctx, c.baseURL+"/healthz", "", nil)
}

// InvalidateShop drops the cached schedule of a shop.
func (c *Client) InvalidateShop(ctx context.Context, shopID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, fmt.Sprintf("open_hours:%s", shopID)).Err()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req, token)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint, token string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	c.addHeaders(req, token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	var wrap struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if json.Unmarshal(data, &wrap) == nil {
		if wrap.Error != "" {
			return wrap.Error
		}
		if wrap.Message != "" {
			return wrap.Message
		}
	}
	return ""
}

func (c *Client) addHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
