package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"gulf-store/internal/cart"
	"gulf-store/internal/domain"
	"gulf-store/internal/narration"
	"gulf-store/internal/storefront"

	"github.com/go-chi/chi/v5"
)

const (
	maxUploadBytes = 6 << 20

	// streamHeader and streamCookie identify a shopper's search stream.
	// Requests carrying neither share defaultStream, the process's one shopper.
	streamHeader  = "X-Shopper-Stream"
	streamCookie  = "gulf_stream"
	defaultStream = "shopper"
)

func (s *Server) registerShopRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/countries", s.handleCountries)
		r.Get("/country", s.handleCountry)
		r.Put("/country", s.handleSelectCountry)
		r.Get("/categories", s.handleCategories)
		r.Get("/products", s.handleProducts)
		r.Post("/products/{id}/narration", s.handleNarration)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.handleCart)
			r.Post("/", s.handleAddToCart)
			r.Delete("/", s.handleClearCart)
			r.Get("/totals", s.handleCartTotals)
			r.Patch("/{id}", s.handleUpdateCartItem)
			r.Delete("/{id}", s.handleRemoveCartItem)
		})

		r.Get("/payment", s.handlePaymentInfo)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/receipts", s.handleReceipt)

		r.Post("/visits", s.handleVisit)
		r.Post("/search", s.handleSearch)
		r.Get("/welcome", s.handleWelcome)
		r.Post("/welcome/seen", s.handleWelcomeSeen)
		r.Get("/notices", s.handleNotices)
	})
	r.Get("/contact/whatsapp", s.handleContact)
}

type cartView struct {
	Items   []domain.CartItem `json:"items"`
	Count   int               `json:"count"`
	Notices []string          `json:"notices,omitempty"`
}

func (s *Server) cartView() cartView {
	items := s.deps.Storefront.CartItems()
	if items == nil {
		items = []domain.CartItem{}
	}
	return cartView{
		Items:   items,
		Count:   s.deps.Storefront.CartCount(),
		Notices: s.deps.Storefront.Notices(),
	}
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.Countries())
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.Country(r.Context()))
}

func (s *Server) handleSelectCountry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" schema:"code"`
	}
	if err := s.decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := s.deps.Storefront.SelectCountry(r.Context(), strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.Categories(r.Context()))
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("group") == "category" {
		respondWithJSON(w, http.StatusOK, s.deps.Storefront.ProductGroups(r.Context(), q.Get("category"), q.Get("q")))
		return
	}
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.Products(r.Context(), q.Get("category"), q.Get("q")))
}

func (s *Server) handleNarration(w http.ResponseWriter, r *http.Request) {
	audio, err := s.deps.Storefront.Narrate(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
	case errors.Is(err, storefront.ErrProductNotFound),
		errors.Is(err, storefront.ErrNarrationOff),
		errors.Is(err, narration.ErrPermissionDenied):
		s.respondWithServiceError(w, r, err)
		return
	default:
		respondWithJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Prompt: narration.PromptFor(err)})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.WAV())
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId" schema:"productId"`
	}
	if err := s.decode(r, &req); err != nil || strings.TrimSpace(req.ProductID) == "" {
		respondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if _, err := s.deps.Storefront.AddToCart(r.Context(), req.ProductID); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.deps.Storefront.ClearCart()
	respondWithJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta" schema:"delta"`
	}
	if err := s.decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.deps.Storefront.UpdateCartQuantity(chi.URLParam(r, "id"), req.Delta)
	respondWithJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	s.deps.Storefront.RemoveFromCart(chi.URLParam(r, "id"))
	respondWithJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleCartTotals(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.CartTotals(r.Context()))
}

func (s *Server) handlePaymentInfo(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Storefront.PaymentInfo(r.Context()))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var form cart.Form
	if err := s.decode(r, &form); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := s.deps.Storefront.Checkout(r.Context(), form)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	// Supplier references never leave the admin side.
	for i := range order.Items {
		order.Items[i].SupplierURL = ""
	}
	respondWithJSON(w, http.StatusCreated, order)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	ref, err := s.deps.Storefront.StoreReceipt(r.Context(), name, data)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"reference": ref})
}

// readUpload returns the multipart "file" field, answering the request
// itself when it is missing or oversized.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<10)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "multipart form with a file field is required")
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "file field is required")
		return "", nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read upload")
		return "", nil, false
	}
	return header.Filename, data, true
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Referrer string `json:"referrer" schema:"referrer"`
	}
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Referrer == "" {
		req.Referrer = r.Referer()
	}
	source := s.deps.Storefront.RecordVisit(r.Context(), req.Referrer)
	respondWithJSON(w, http.StatusOK, map[string]string{"source": source})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query" schema:"query"`
	}
	if err := s.decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.deps.Storefront.ObserveSearch(streamID(r), req.Query)
	w.WriteHeader(http.StatusAccepted)
}

func streamID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(streamHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(streamCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return defaultStream
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"seen": s.deps.Storefront.WelcomeSeen(r.Context())})
}

func (s *Server) handleWelcomeSeen(w http.ResponseWriter, r *http.Request) {
	s.deps.Storefront.MarkWelcomeSeen(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	notices := s.deps.Storefront.Notices()
	if notices == nil {
		notices = []string{}
	}
	respondWithJSON(w, http.StatusOK, notices)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.deps.Storefront.ContactLink(r.Context()), http.StatusFound)
}
