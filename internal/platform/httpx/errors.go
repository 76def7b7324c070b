package httpx

import (
	"errors"
	"net/http"

	"github.com/lensworks/lensworks/internal/shared"
)

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		Invalid(w, verr.Fields)
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, shared.ErrPriceNotConfigured):
		Fail(w, http.StatusNotFound, shared.ErrPriceNotConfigured.Error())
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrUpstream):
		Fail(w, http.StatusBadGateway, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// IsServerError reports whether err maps to a 5xx response worth logging.
func IsServerError(err error) bool {
	return !errors.Is(err, shared.ErrValidation) &&
		!errors.Is(err, shared.ErrNotFound) &&
		!errors.Is(err, shared.ErrConflict)
}
