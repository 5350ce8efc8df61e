package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingToken is returned before any request when no token is configured.
	ErrMissingToken  = errors.New("safeshipper: API token is not configured")
	// ErrUnauthorized matches 401 and 403 responses through errors.Is.
	ErrUnauthorized  = errors.New("safeshipper: unauthorized")
	ErrJobFinalized  = errors.New("safeshipper: manifest is finalized")
	ErrAnalysisEnded = errors.New("safeshipper: manifest analysis did not reach confirmation")
)

// APIError is any non-2xx response without a more specific meaning.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("safeshipper: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// UploadRejectedError is returned when the server refuses an upload.
type UploadRejectedError struct {
	StatusCode int
	Message    string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("safeshipper: upload rejected (%d): %s", e.StatusCode, e.Message)
}

// CompatibilityError is returned by Finalize when the confirmed goods may not
// travel together. Result holds the server's compatibility payload.
type CompatibilityError struct {
	StatusCode int
	Message    string
	Result     CompatibilityResult
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("safeshipper: %s: %s", e.Message, strings.Join(e.Result.Conflicts, "; "))
}

func (e *CompatibilityError) IsCompatibilityError() bool { return true }

// IsCompatibilityError reports whether err carries a segregation conflict.
func IsCompatibilityError(err error) bool {
	var ce interface{ IsCompatibilityError() bool }
	return errors.As(err, &ce) && ce.IsCompatibilityError()
}

// ContractViolationError is a caller mistake caught before any request.
type ContractViolationError struct {
	Operation string
	Reason    string
	Values    []string
}

func (e *ContractViolationError) Error() string {
	if len(e.Values) == 0 {
		return fmt.Sprintf("safeshipper: %s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("safeshipper: %s: %s: %s", e.Operation, e.Reason, strings.Join(e.Values, ", "))
}
