package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPStatus maps the taxonomy to the status code the API layer returns.
// Anything outside the taxonomy is an internal error.
func HTTPStatus(err error) int {
	var (
		validation ValidationError
		notFound   NotFoundError
		upstream   UpstreamError
		conflict   ConflictError
	)
	switch {
	case stderrors.As(err, &validation):
		return http.StatusBadRequest
	case stderrors.As(err, &notFound):
		return http.StatusNotFound
	case stderrors.As(err, &upstream):
		return http.StatusBadGateway
	case stderrors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
