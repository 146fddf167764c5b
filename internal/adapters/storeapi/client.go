package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/phenrril/attarstore/internal/domain"
)

// Client talks to the store backend. Catalog calls are anonymous; the admin
// e-mail endpoints carry the bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	adminHTTP  *http.Client
}

var (
	_ domain.ProductAPI = (*Client)(nil)
	_ domain.EmailAPI   = (*Client)(nil)
)

func NewClient(baseURL, adminToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	if adminToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.adminHTTP = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: adminToken, TokenType: "Bearer"}))
		c.adminHTTP.Timeout = timeout
	} else {
		c.adminHTTP = c.httpClient
	}
	return c
}

type listProductsResp struct {
	Products []domain.RawProduct `json:"products"`
}

type productResp struct {
	Product *domain.RawProduct `json:"product"`
}

type recipientsResp struct {
	Total int `json:"total"`
}

type sendBulkReq struct {
	Subject        string  `json:"subject"`
	HTMLContent    string  `json:"html_content"`
	SendToAll      bool    `json:"send_to_all"`
	RecipientEmail *string `json:"recipient_email,omitempty"`
}

type sendBulkResp struct {
	RecipientsCount int `json:"recipients_count"`
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.RawProduct, error) {
	var out listProductsResp
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	if out.Products == nil {
		return []domain.RawProduct{}, nil
	}
	return out.Products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.RawProduct, error) {
	var out productResp
	if err := c.do(ctx, c.httpClient, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return out.Product, nil
}

func (c *Client) SendBulkEmail(ctx context.Context, subject, htmlBody string, target domain.EmailTarget) (int, error) {
	req := sendBulkReq{Subject: subject, HTMLContent: htmlBody, SendToAll: target.All}
	if !target.All {
		to := target.RecipientEmail
		req.RecipientEmail = &to
	}
	var out sendBulkResp
	if err := c.do(ctx, c.adminHTTP, http.MethodPost, "/admin/emails/send-bulk", req, &out); err != nil {
		return 0, err
	}
	return out.RecipientsCount, nil
}

func (c *Client) RecipientCount(ctx context.Context) (int, error) {
	var out recipientsResp
	if err := c.do(ctx, c.adminHTTP, http.MethodGet, "/admin/emails/recipients", nil, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	op := method + " " + path
	if c.baseURL == "" {
		return &domain.NetworkError{Op: op, Message: "store api not configured (STORE_API_URL)"}
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := hc.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("store api request failed")
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if res.StatusCode >= 300 {
		raw, _ := io.ReadAll(res.Body)
		return &domain.NetworkError{Op: op, StatusCode: res.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &domain.NetworkError{Op: op, StatusCode: res.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// errorMessage prefers the backend "detail" field, falling back to the raw body.
func errorMessage(raw []byte) string {
	var e struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		if s, ok := e.Detail.(string); ok && s != "" {
			return s
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
