package llm

import "fmt"

// UnknownProviderError is returned for a provider id with no registered client
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown LLM provider: %s", e.Provider)
}

// TimeoutError reports a request that exceeded the provider's timeout
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s API timed out", e.Provider)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports a network failure before a response was received
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("error making request to %s API: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseFormatError reports a success payload without the expected text field
type ResponseFormatError struct {
	Provider string
	Detail   string
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %s", e.Provider, e.Detail)
}

// ProviderError reports a non-success HTTP status from a provider
type ProviderError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Detail)
}
