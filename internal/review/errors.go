package review

import (
	"errors"
	"fmt"
)

// Pipeline failures. All of them surface to the MCP client inside an
// error envelope; none are fatal to the process.
var (
	// ErrMissingArgument is returned when a review request lacks the
	// question or the answer.
	ErrMissingArgument = errors.New("both user_question and my_answer are required")

	// ErrMissingCredential is returned before any network I/O when no
	// API key is configured.
	ErrMissingCredential = errors.New("GEMINI_API_KEY environment variable is required")

	// ErrMalformedResponse is returned when the API replied with a
	// success status but the expected content path is absent.
	ErrMalformedResponse = errors.New("invalid response from Gemini API")
)

// RemoteError is a non-success HTTP response from the Gemini API. The
// body is carried in full; callers truncate it for logging only.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("Gemini API request failed with status %d: %s", e.StatusCode, e.Body)
}
