package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/attarstore/internal/adapters/repo/memory"
	"github.com/phenrril/attarstore/internal/domain"
	"github.com/phenrril/attarstore/internal/usecase"
)

func strPtr(s string) *string { return &s }

type stubProducts struct {
	list []domain.RawProduct
	err  error
}

func (s *stubProducts) ListProducts(ctx context.Context) ([]domain.RawProduct, error) {
	return s.list, s.err
}

func (s *stubProducts) GetProduct(ctx context.Context, id string) (*domain.RawProduct, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.list {
		if fmt.Sprint(s.list[i].ProductID) == id {
			p := s.list[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
}

type stubEmails struct {
	mu    sync.Mutex
	calls int
	total int
}

func (s *stubEmails) SendBulkEmail(ctx context.Context, subject, htmlBody string, target domain.EmailTarget) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if target.All {
		return s.total, nil
	}
	return 1, nil
}

func (s *stubEmails) RecipientCount(ctx context.Context) (int, error) { return s.total, nil }

type fixture struct {
	handler  http.Handler
	products *stubProducts
	emails   *stubEmails
	sessions *usecase.Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products: &stubProducts{list: []domain.RawProduct{
			{ProductID: 1.0, ProductName: "Oud", ProductType: "Perfume", Price: "1200", Category: strPtr("Our Best Sellers")},
			{ProductID: 2.0, ProductName: "Rose", ProductType: "attar", Variants: []domain.RawVariant{{VariantID: 21.0, Price: 300.0}}, Category: strPtr("Famous Fragrances")},
			{ProductID: 3.0, ProductName: "Musk", ProductType: "attar", Price: "250", Category: strPtr("Our Best Sellers")},
			{ProductID: 4.0, ProductName: "Amber", ProductType: "Perfume", Price: "800"},
		}},
		emails:   &stubEmails{total: 12},
		sessions: usecase.NewSessions(memory.NewCartRepo()),
	}
	f.handler = New(Deps{
		Products:   f.products,
		Normalizer: usecase.Normalizer{},
		Sessions:   f.sessions,
		BulkEmail:  &usecase.BulkEmailUC{Emails: f.emails},
		SessionKey: []byte("test-key"),
		AdminKey:   "admin-key",
	})
	t.Cleanup(func() { _ = f.sessions.Close(context.Background()) })
	return f
}

func (f *fixture) do(method, path, body string, cookies []*http.Cookie, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	body := decode(t, rec)
	assert.EqualValues(t, 4, body["count"])
	assert.Equal(t, []any{"Our Best Sellers", "Famous Fragrances"}, body["categories"])

	rec = f.do(http.MethodGet, "/api/products?kind=attar", "", nil)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = f.do(http.MethodGet, "/api/products?kind=attar&category=Our+Best+Sellers", "", nil)
	body = decode(t, rec)
	require.EqualValues(t, 1, body["count"])
	first := body["products"].([]any)[0].(map[string]any)
	assert.Equal(t, "Musk", first["name"])
	assert.Equal(t, "₹250", first["price"])

	rec = f.do(http.MethodPost, "/api/products", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProductDetail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/products/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	product := body["product"].(map[string]any)
	assert.Equal(t, "Rose", product["name"])
	assert.Equal(t, "21", product["variant_id"])
	assert.Equal(t, "₹300", product["price"])
	assert.Len(t, body["related"], 3)

	rec = f.do(http.MethodGet, "/api/products/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/home", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["best_sellers"], 2)
	assert.Len(t, body["famous"], 1)
	assert.Empty(t, body["most_reordered"])
	assert.Equal(t, "Oud", body["featured"].(map[string]any)["name"])
}

func TestBackendFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.products.err = &domain.NetworkError{Op: "GET /products", StatusCode: 500, Message: "boom"}

	rec := f.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "boom")

	f.products.err = nil
	f.products.list = append(f.products.list, domain.RawProduct{ProductName: "no id"})
	rec = f.do(http.MethodGet, "/api/home", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items", `{"product_id":"1","quantity":2}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = f.do(http.MethodPost, "/api/cart/items", `{"product_id":"1","quantity":3}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "known session keeps its cookie")
	body := decode(t, rec)
	assert.EqualValues(t, 5, body["total_items"])
	assert.Equal(t, "6000.00", body["total_price"])
	assert.Equal(t, "₹6000", body["total"])

	rec = f.do(http.MethodPost, "/api/cart/items", `{"product_id":"2"}`, cookies)
	body = decode(t, rec)
	assert.EqualValues(t, 6, body["total_items"])
	assert.Len(t, body["items"], 2)

	rec = f.do(http.MethodPut, "/api/cart/items/1", `{"quantity":0}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["total_items"])

	rec = f.do(http.MethodDelete, "/api/cart/items/1", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total_items"])

	rec = f.do(http.MethodPatch, "/api/cart/items/1", `{"quantity":4}`, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPatch, "/api/cart/items/21", `{"quantity":-1}`, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPatch, "/api/cart/items/21", `{}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/cart", "", cookies)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["total_items"])

	rec = f.do(http.MethodDelete, "/api/cart", "", cookies)
	body = decode(t, rec)
	assert.EqualValues(t, 0, body["total_items"])
	assert.Empty(t, body["items"])
}

func TestCartRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items", `{"product_id":"1","quantity":-2}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, "/api/cart/items", `{"product_id":"404"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/cart/items", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTamperedSessionStartsFresh(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/cart/items", `{"product_id":"1"}`, nil)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	forged := *cookies[0]
	forged.Value = "x" + forged.Value
	rec = f.do(http.MethodGet, "/api/cart", "", []*http.Cookie{&forged})
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["total_items"])
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestAdminEmails(t *testing.T) {
	f := newFixture(t)
	auth := []string{"Authorization", "Bearer admin-key"}

	rec := f.do(http.MethodGet, "/admin/emails/recipients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(http.MethodGet, "/admin/emails/recipients", "", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/admin/emails/recipients", "", nil, auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 12, decode(t, rec)["total"])

	rec = f.do(http.MethodPost, "/admin/emails/send-bulk", `{"subject":"","html_content":"<p>x</p>","send_to_all":true}`, nil, auth...)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decode(t, rec)["fields"]
	assert.Contains(t, fields, "subject")
	assert.NotContains(t, fields, "html_content")
	assert.Zero(t, f.emails.calls)

	rec = f.do(http.MethodPost, "/admin/emails/send-bulk", `{"subject":"Eid","html_content":"<p>x</p>","send_to_all":true}`, nil, auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 12, body["recipients_count"])

	rec = f.do(http.MethodPost, "/admin/emails/send-bulk", `{"subject":"Eid","html_content":"<p>x</p>","recipient_email":"a@b.io"}`, nil, auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["recipients_count"])
}

func TestAdminEmailsWithoutBackend(t *testing.T) {
	h := New(Deps{
		Products:   &stubProducts{},
		Sessions:   usecase.NewSessions(nil),
		SessionKey: []byte("k"),
		AdminKey:   "admin-key",
	})
	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/admin/emails/recipients", nil),
		httptest.NewRequest(http.MethodPost, "/admin/emails/send-bulk", strings.NewReader(`{"subject":"s","html_content":"b","send_to_all":true}`)),
	} {
		r.Header.Set("Authorization", "Bearer admin-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, r.URL.Path)
		assert.Contains(t, rec.Body.String(), "STORE_API_URL")
	}
}

func TestAdminExportCatalog(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/admin/export/catalog.xlsx", "", nil, "Authorization", "Bearer admin-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "catalog.xlsx")

	x, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows(x.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }), Recovery, Logging, RequestID)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}
