package httpclient

import (
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/errors"
)

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. The caller should only invoke this when
// resp.StatusCode indicates an error. The response body is fully consumed and
// closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	msg := fmt.Sprintf("%s returned status %d: %s", upstream, resp.StatusCode, string(bodyBytes))

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusBadRequest:
		// OAuth token endpoints signal a rejected or expired authorization
		// code with 400/401; surface both as Unauthorized.
		return apperrors.Unauthorized(msg)
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(upstream, "endpoint")
	default:
		return fmt.Errorf("%s", msg)
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
