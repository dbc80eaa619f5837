package httpserver

import (
	"context"
	"errors"
	"net/http"

	"gulf-store/internal/admin"
	"gulf-store/internal/auth"
	"gulf-store/internal/cart"
	"gulf-store/internal/kv"
	"gulf-store/internal/media"
	"gulf-store/internal/narration"
	"gulf-store/internal/storefront"
)

// respondWithServiceError maps a service error to its status code and body.
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *cart.ValidationError
	if errors.As(err, &verr) {
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Fields: verr.Fields})
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrDenied):
		code = http.StatusUnauthorized
	case errors.Is(err, storefront.ErrProductNotFound), errors.Is(err, admin.ErrProductNotFound):
		code = http.StatusNotFound
	case errors.Is(err, storefront.ErrUnknownCountry),
		errors.Is(err, admin.ErrInvalidProduct),
		errors.Is(err, admin.ErrInvalidCategory),
		errors.Is(err, media.ErrEmpty),
		errors.Is(err, media.ErrNotImage):
		code = http.StatusBadRequest
	case errors.Is(err, media.ErrTooLarge):
		code = http.StatusRequestEntityTooLarge
	case errors.Is(err, admin.ErrProtectedCategory):
		code = http.StatusConflict
	case errors.Is(err, narration.ErrPermissionDenied):
		respondWithJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Prompt: narration.PromptFor(err)})
		return
	case errors.Is(err, storefront.ErrNarrationOff), errors.Is(err, kv.ErrUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("http").Inc()
		}
	}
	respondWithError(w, code, err.Error())
}
