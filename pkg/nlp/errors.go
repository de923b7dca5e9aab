package nlp

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Common LLM client errors
var (
	// ErrEmptyResponse indicates the model returned an empty response
	ErrEmptyResponse = errors.New("the model returned an empty response")

	// ErrMalformedJSON indicates the model returned a body that could not be
	// parsed as a JSON object
	ErrMalformedJSON = errors.New("the model returned malformed JSON")

	// ErrNoModels indicates that no usable model pool could be resolved
	ErrNoModels = errors.New("no models configured")

	// ErrMissingAPIKey indicates the API key is not configured
	ErrMissingAPIKey = errors.New("api key not configured; set it in the settings file or via LLM_API_KEY")
)

// APIError is a provider-agnostic view of an upstream API failure. Rotation
// decisions and usage log records are derived from it.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Code != "":
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("api error (%s): %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("api error: %s", e.Message)
	}
}

// Is implements errors.Is support for APIError.
// This allows errors.Is(err, &APIError{}) to work with wrapped errors.
func (e *APIError) Is(target error) bool {
	_, ok := target.(*APIError)
	return ok
}

// extractErrorInfo normalizes an upstream failure into an APIError. The
// OpenAI SDK surfaces two error shapes; anything else keeps only its type
// name and message.
func extractErrorInfo(err error) *APIError {
	if err == nil {
		return nil
	}

	var own *APIError
	if errors.As(err, &own) {
		return own
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Type:       "request_error",
			Message:    err.Error(),
		}
	}

	return &APIError{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}
}
