package llm

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors surfaced by the gateway. Callers decide policy:
// retry, fail the step, or (for content filtering) block the request.
var (
	// ErrRateLimited means provider quota was exhausted after the
	// gateway's own retry budget ran out.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrUnauthorized means the provider rejected the credentials.
	ErrUnauthorized = errors.New("llm: unauthorized")

	// ErrContentFiltered means the provider's own safety layer
	// refused the request or the response.
	ErrContentFiltered = errors.New("llm: content filtered")
)

// SchemaError reports that the model could not produce output matching
// the requested schema within the retry budget. The last raw output is
// preserved for diagnostics.
type SchemaError struct {
	SchemaName string
	Attempts   int
	RawOutput  string
	Err        error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("llm: output failed schema %q after %d attempts: %v", e.SchemaName, e.Attempts, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsContentFiltered reports whether err stems from provider-side
// content filtering, either as our sentinel or as the provider's own
// error shape.
func IsContentFiltered(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentFiltered) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && strings.Contains(strings.ToLower(code), "content_filter") {
			return true
		}
		if strings.Contains(strings.ToLower(apiErr.Message), "content management policy") {
			return true
		}
	}
	return false
}

// classifyAPIError maps a provider error onto the gateway's sentinels
// where one applies, passing everything else through unchanged.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.HTTPStatusCode {
	case 401, 403:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case 429:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	if IsContentFiltered(err) {
		return fmt.Errorf("%w: %v", ErrContentFiltered, err)
	}
	return err
}

// retryableAPIError reports whether the provider error is worth another
// attempt inside the gateway's backoff budget.
func retryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	// Transport-level failures (timeouts, resets) come through as
	// plain errors from the HTTP client.
	return true
}
