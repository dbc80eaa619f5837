package httpserver

import (
	"context"
	"net/http"
	"time"

	"gulf-store/internal/auth"
	"gulf-store/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerAdminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/products", s.handleAdminProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Put("/products/{id}", s.handleUpdateProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)
			r.Post("/images", s.handleAdminImage)

			r.Get("/categories", s.handleAdminCategories)
			r.Post("/categories", s.handleAddCategory)
			r.Delete("/categories/{name}", s.handleDeleteCategory)

			r.Get("/settings", s.handleSettings)
			r.Put("/settings", s.handleSaveSettings)

			r.Get("/orders", s.handleOrders)
			r.Delete("/orders", s.handleClearOrders)

			r.Get("/stats", s.handleStats)
			r.Get("/live", s.handleLive)
			r.Delete("/live", s.handleStopLive)
		})
	})
}

const adminCookie = "gulf_admin_session"

func adminToken(r *http.Request) string {
	c, err := r.Cookie(adminCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireAdmin rejects requests that do not carry a live admin session cookie.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.deps.Session.Valid(r.Context(), adminToken(r)) {
			respondWithError(w, http.StatusUnauthorized, "admin login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := s.decode(r, &creds); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.deps.Session.Login(r.Context(), creds)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Live != nil {
		s.deps.Live.Stop()
	}
	if err := s.deps.Session.Logout(r.Context(), adminToken(r)); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Admin.Products(r.Context()))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := s.decode(r, &p); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.deps.Admin.CreateProduct(r.Context(), p)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := s.decode(r, &p); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.ID = chi.URLParam(r, "id")
	updated, err := s.deps.Admin.UpdateProduct(r.Context(), p)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminImage(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	ref, err := s.deps.Images.Store(r.Context(), name, data)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"reference": ref})
}

func (s *Server) handleAdminCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Admin.Categories(r.Context()))
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" schema:"name"`
	}
	if err := s.decode(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	list, err := s.deps.Admin.AddCategory(r.Context(), req.Name)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Admin.DeleteCategory(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Admin.Settings(r.Context()))
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var st domain.StoreSettings
	if err := s.decode(r, &st); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Admin.SaveSettings(r.Context(), st); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.deps.Admin.Orders(r.Context()))
}

func (s *Server) handleClearOrders(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.ClearOrders(r.Context()); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats serves the dashboard; opening it starts the live-visitor ticker.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.startLive(r.Context())
	respondWithJSON(w, http.StatusOK, s.deps.Admin.Dashboard(r.Context(), time.Now()))
}

type liveView struct {
	Visitors int  `json:"visitors"`
	Running  bool `json:"running"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.startLive(r.Context())
	var view liveView
	if s.deps.Live != nil {
		view = liveView{Visitors: s.deps.Live.Value(), Running: s.deps.Live.Running()}
	}
	respondWithJSON(w, http.StatusOK, view)
}

// handleStopLive is called when the dashboard view closes.
func (s *Server) handleStopLive(w http.ResponseWriter, r *http.Request) {
	if s.deps.Live != nil {
		s.deps.Live.Stop()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startLive(ctx context.Context) {
	if s.deps.Live == nil {
		return
	}
	// The ticker outlives the request that opened the dashboard.
	s.deps.Live.Start(context.WithoutCancel(ctx))
}
