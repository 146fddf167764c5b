package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/attarstore/internal/adapters/sheet"
	"github.com/phenrril/attarstore/internal/domain"
	"github.com/phenrril/attarstore/internal/usecase"
)

type Deps struct {
	Products   domain.ProductAPI
	Normalizer usecase.Normalizer
	Sessions   *usecase.Sessions
	BulkEmail  *usecase.BulkEmailUC
	SessionKey []byte
	AdminKey   string
	Secure     bool
}

// Server is the JSON surface the storefront pages call. Every catalog
// request gets its own page state, mounted for the request and torn down
// when it ends; carts live in the session registry.
type Server struct {
	mux        *http.ServeMux
	products   domain.ProductAPI
	norm       usecase.Normalizer
	sessions   *usecase.Sessions
	bulkEmail  *usecase.BulkEmailUC
	sessionKey []byte
	adminKey   string
	secure     bool
}

func New(d Deps) http.Handler {
	s := &Server{
		mux:        http.NewServeMux(),
		products:   d.Products,
		norm:       d.Normalizer,
		sessions:   d.Sessions,
		bulkEmail:  d.BulkEmail,
		sessionKey: d.SessionKey,
		adminKey:   d.AdminKey,
		secure:     d.Secure,
	}
	s.routes()
	return Chain(s.mux, Recovery, Logging, RequestID)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/products", s.apiProducts)
	s.mux.HandleFunc("/api/products/", s.apiProductByID)
	s.mux.HandleFunc("/api/home", s.apiHome)

	s.mux.HandleFunc("/api/cart", s.apiCart)
	s.mux.HandleFunc("/api/cart/items", s.apiCartItems)
	s.mux.HandleFunc("/api/cart/items/", s.apiCartItem)

	s.mux.HandleFunc("/admin/emails/recipients", s.adminRecipients)
	s.mux.HandleFunc("/admin/emails/send-bulk", s.adminSendBulk)
	s.mux.HandleFunc("/admin/export/catalog.xlsx", s.adminExportCatalog)
}

// mountCatalog loads a fresh page snapshot and unmounts the page when the
// request ends, so a late fetch result is dropped.
func (s *Server) mountCatalog(ctx context.Context) (*usecase.CatalogPage, func(), error) {
	page := usecase.NewCatalogPage(s.products, s.norm)
	if err := waitLoad(ctx, page.Mount(ctx)); err != nil {
		page.Unmount()
		return nil, nil, err
	}
	if err := page.Err(); err != nil {
		page.Unmount()
		return nil, nil, err
	}
	return page, page.Unmount, nil
}

func waitLoad(ctx context.Context, l *usecase.Load) error {
	select {
	case <-l.Done():
		if l.State() == usecase.StateFailed {
			return l.Err()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	page, unmount, err := s.mountCatalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer unmount()

	kind := domain.KindAll
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))) {
	case "perfume":
		kind = domain.KindPerfume
	case "attar":
		kind = domain.KindAttar
	}
	list := page.Filter(kind)
	if cat := r.URL.Query().Get("category"); cat != "" {
		list = page.Store.FilterByCategory(cat)
		if kind != domain.KindAll {
			n := 0
			for _, p := range list {
				if p.Kind == kind {
					list[n] = p
					n++
				}
			}
			list = list[:n]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(list),
		"products":   list,
		"categories": page.Store.Categories(),
	})
}

func (s *Server) apiProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/products/"), "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product id required"})
		return
	}
	page := usecase.NewProductDetailPage(s.products, s.norm)
	defer page.Unmount()
	if err := waitLoad(r.Context(), page.Show(r.Context(), id)); err != nil {
		writeError(w, err)
		return
	}
	detail, err := page.Detail()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) apiHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	page, unmount, err := s.mountCatalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer unmount()
	writeJSON(w, http.StatusOK, page.Home())
}

type cartView struct {
	SessionID  string                `json:"session_id"`
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	TotalPrice string                `json:"total_price"`
	Total      string                `json:"total"`
}

func (s *Server) cart(w http.ResponseWriter, r *http.Request) *usecase.CartStore {
	id := s.readSession(r)
	c := s.sessions.Cart(r.Context(), id)
	if c.SessionID() != id {
		s.writeSession(w, c.SessionID())
	}
	return c
}

func (s *Server) writeCart(w http.ResponseWriter, code int, c *usecase.CartStore) {
	total := c.TotalPrice()
	writeJSON(w, code, cartView{
		SessionID:  c.SessionID(),
		Items:      c.Items(),
		TotalItems: c.TotalItems(),
		TotalPrice: total.StringFixed(2),
		Total:      s.norm.FormatPrice(total),
	})
}

func (s *Server) apiCart(w http.ResponseWriter, r *http.Request) {
	c := s.cart(w, r)
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		c.Clear()
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeCart(w, http.StatusOK, c)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) apiCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	raw, err := s.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.norm.Normalize(*raw)
	if err != nil {
		writeError(w, err)
		return
	}
	c := s.cart(w, r)
	if err := c.AddItem(p, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	s.writeCart(w, http.StatusCreated, c)
}

type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) apiCartItem(w http.ResponseWriter, r *http.Request) {
	variant := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/cart/items/"), "/")
	if variant == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variant id required"})
		return
	}
	c := s.cart(w, r)
	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var req setQuantityReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity required"})
			return
		}
		if err := c.SetQuantity(variant, *req.Quantity); err != nil {
			writeError(w, err)
			return
		}
	case http.MethodDelete:
		c.RemoveItem(variant)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeCart(w, http.StatusOK, c)
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	key := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if s.adminKey != "" && key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) == 1 {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	return false
}

// emailEnabled answers 503 when no store backend handles bulk e-mail.
func (s *Server) emailEnabled(w http.ResponseWriter) bool {
	if s.bulkEmail == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "bulk email needs STORE_API_URL"})
		return false
	}
	return true
}

func (s *Server) adminRecipients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) || !s.emailEnabled(w) {
		return
	}
	n, err := s.bulkEmail.RecipientCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

func (s *Server) adminSendBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) || !s.emailEnabled(w) {
		return
	}
	var req usecase.BulkEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	res, err := s.bulkEmail.Send(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recipients_count": res.RecipientsCount})
}

func (s *Server) adminExportCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	page, unmount, err := s.mountCatalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer unmount()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=catalog.xlsx")
	if err := sheet.ExportCatalog(w, page.Store.All()); err != nil {
		log.Error().Err(err).Msg("export catalog")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	code := http.StatusInternalServerError
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		code = http.StatusUnprocessableEntity
		body["fields"] = verr.Fields
	case errors.Is(err, domain.ErrInvalidQuantity):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrMalformedRecord), errors.Is(err, domain.ErrDuplicateID):
		code = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= 500 {
		log.Error().Err(err).Int("status", code).Msg("request failed")
	}
	writeJSON(w, code, body)
}
