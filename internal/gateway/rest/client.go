// Package rest implements gateway.RemoteCartGateway over the cart service's JSON API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/abgdnv/cartsync/internal/domain"
	carterrors "github.com/abgdnv/cartsync/internal/errors"
	"github.com/abgdnv/cartsync/internal/gateway"
	"github.com/abgdnv/cartsync/pkg/auth"
	"github.com/abgdnv/cartsync/pkg/logger"
	"github.com/abgdnv/cartsync/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	cartPath      = "/api/v1/cart"
	cartItemsPath = "/api/v1/cart/items/"
	maxBodyBytes  = 1 << 20
)

var _ gateway.RemoteCartGateway = (*Client)(nil)

// Client talks to the remote cart service. Resilience (timeouts, retries, circuit breaking)
// lives in the http.Client's transport, see NewTransport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewClient creates a new cart service client.
func NewClient(baseURL string, httpClient *http.Client, tokens auth.TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		validate:   validator.New(),
		logger:     logger.With("component", "cart-gateway"),
	}
}

type itemDto struct {
	CartID    string `json:"cart_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Name      string `json:"name"`
	Price     int64  `json:"price" validate:"min=0"`
	Quantity  int    `json:"quantity" validate:"min=1"`
	Stock     int    `json:"stock" validate:"min=0"`
	ImageRef  string `json:"image_ref"`
}

type cartDto struct {
	Items []itemDto `json:"items" validate:"dive"`
}

type quantityDto struct {
	Quantity int `json:"quantity"`
}

type quantityData struct {
	Quantity *int `json:"quantity"`
}

type envelope struct {
	IsSuccess bool          `json:"is_success"`
	Message   string        `json:"message"`
	Data      *quantityData `json:"data,omitempty"`
}

// FetchCart retrieves the full cart. Lines failing validation make the whole snapshot invalid.
func (c *Client) FetchCart(ctx context.Context) ([]domain.Item, error) {
	const op = "fetch cart"
	resp, err := c.do(ctx, op, http.MethodGet, cartPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(ctx, op, resp.StatusCode)
	}

	var dto cartDto
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&dto); err != nil {
		return nil, &carterrors.TransportError{Op: op, Err: fmt.Errorf("failed to decode cart: %w", err)}
	}
	if err := c.validate.Struct(dto); err != nil {
		fields, _ := web.FieldErrors(err)
		c.logger.WarnContext(ctx, "Cart service returned an invalid cart", "errors", fields)
		return nil, fmt.Errorf("%s: %w: %v", op, carterrors.ErrInvalidSnapshot, err)
	}

	items := make([]domain.Item, 0, len(dto.Items))
	for _, it := range dto.Items {
		items = append(items, domain.Item{
			CartID:    it.CartID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Stock:     it.Stock,
			ImageRef:  it.ImageRef,
		})
	}
	c.logger.DebugContext(ctx, "Fetched cart", "lines", len(items))
	return items, nil
}

// SetQuantity writes the quantity of one line.
func (c *Client) SetQuantity(ctx context.Context, cartID string, quantity int) (gateway.SetQuantityResult, error) {
	const op = "set quantity"
	body, err := json.Marshal(quantityDto{Quantity: quantity})
	if err != nil {
		return gateway.SetQuantityResult{}, fmt.Errorf("%s: failed to encode request: %w", op, err)
	}
	env, err := c.exchange(ctx, op, http.MethodPut, cartItemsPath+url.PathEscape(cartID), body)
	if err != nil {
		return gateway.SetQuantityResult{}, err
	}
	result := gateway.SetQuantityResult{IsSuccess: env.IsSuccess, Message: env.Message}
	if env.Data != nil {
		result.Quantity = env.Data.Quantity
	}
	return result, nil
}

// RemoveItem deletes one line.
func (c *Client) RemoveItem(ctx context.Context, cartID string) (gateway.RemoveResult, error) {
	const op = "remove item"
	env, err := c.exchange(ctx, op, http.MethodDelete, cartItemsPath+url.PathEscape(cartID), nil)
	if err != nil {
		return gateway.RemoveResult{}, err
	}
	return gateway.RemoveResult{IsSuccess: env.IsSuccess, Message: env.Message}, nil
}

// exchange performs a mutation and decodes the result envelope.
// A 4xx answer carrying an envelope is a refusal by the service, not a transport failure.
func (c *Client) exchange(ctx context.Context, op, method, path string, body []byte) (envelope, error) {
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		if decodeErr != nil {
			return envelope{}, &carterrors.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
		}
		return env, nil
	case isBusinessStatus(resp.StatusCode) && decodeErr == nil:
		env.IsSuccess = false
		c.logger.WarnContext(ctx, "Cart service refused the change", "op", op, "status", resp.StatusCode, "message", env.Message)
		return env, nil
	default:
		return envelope{}, c.statusError(ctx, op, resp.StatusCode)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrNoSession) {
			err = fmt.Errorf("%w: %w", carterrors.ErrSessionExpired, err)
		}
		return nil, &carterrors.TransportError{Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(web.HeaderRequestID, requestID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Cart service call failed", "op", op, "error", err)
		return nil, &carterrors.TransportError{Op: op, Err: err}
	}
	return resp, nil
}

func (c *Client) statusError(ctx context.Context, op string, status int) error {
	c.logger.ErrorContext(ctx, "Cart service returned an error status", "op", op, "status", status)
	err := fmt.Errorf("unexpected status %d", status)
	if status == http.StatusUnauthorized {
		err = fmt.Errorf("%w: %w", carterrors.ErrSessionExpired, err)
	}
	return &carterrors.TransportError{Op: op, Err: err}
}

// isBusinessStatus reports client errors that carry a decision of the service.
// 401, 408 and 429 describe the session or the connection and are transport failures.
func isBusinessStatus(status int) bool {
	if status < 400 || status > 499 {
		return false
	}
	switch status {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}

func requestID(ctx context.Context) string {
	if id := logger.RequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
