package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from a backend. It keeps the status code so
// callers can distinguish rate limiting from hard failures.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a 429 from any provider.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
