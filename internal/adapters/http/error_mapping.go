package httpadapter

import (
	"net/http"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage hides internals of server-side failures.
func publicErrorMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable, retry later"
	case http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}
