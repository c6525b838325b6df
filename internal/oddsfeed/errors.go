package oddsfeed

import "errors"

// FeedError represents a failed call to a data collaborator.
type FeedError struct {
	Endpoint string
	Code     string
	Message  string
	Err      error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return e.Endpoint + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Endpoint + ": " + e.Code + ": " + e.Message
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	CodeRateLimited  = "rate_limit_exceeded"
	CodeUnauthorized = "authentication_failed"
	CodeNotFound     = "not_found"
	CodeInvalidData  = "invalid_data"
	CodeNetwork      = "network_error"
	CodeServer       = "server_error"
)

// ErrNotFound is wrapped by FeedError for 404 responses.
var ErrNotFound = errors.New("not found")

func newFeedError(endpoint, code, message string, err error) *FeedError {
	return &FeedError{Endpoint: endpoint, Code: code, Message: message, Err: err}
}
