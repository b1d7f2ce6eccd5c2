package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// maxRawDetail bounds the raw body echoed for unparseable error responses
const maxRawDetail = 100

var errNoErrorObject = errors.New("no error object in response body")

// errorDetailFunc extracts a readable message from a provider error envelope
type errorDetailFunc func(body []byte) (string, error)

// client is the HTTP plumbing shared by the provider implementations
type client struct {
	name       string
	httpClient *http.Client
}

func newClient(name string, cfg ProviderConfig) client {
	return client{
		name:       name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// post sends payload as JSON and returns the body of a 200 response
func (c client) post(ctx context.Context, url string, header http.Header, payload any, parseErr errorDetailFunc) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &TransportError{Provider: c.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	log.WithFields(log.Fields{
		"provider": c.name,
		"event":    "provider_request",
	}).Info("Generating response")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, err := parseErr(body)
		switch {
		case errors.Is(err, errNoErrorObject):
			detail = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)
		case err != nil:
			raw := body
			if len(raw) > maxRawDetail {
				raw = raw[:maxRawDetail]
			}
			detail = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, raw)
		}
		perr := &ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Detail: detail}
		log.WithFields(log.Fields{
			"provider": c.name,
			"status":   resp.StatusCode,
			"error":    perr.Error(),
			"event":    "provider_error",
		}).Error("Provider returned an error")
		return nil, perr
	}
	return body, nil
}

func (c client) classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		log.WithFields(log.Fields{
			"provider": c.name,
			"event":    "provider_timeout",
		}).Error("Provider request timed out")
		return &TimeoutError{Provider: c.name, Err: err}
	}
	log.WithFields(log.Fields{
		"provider": c.name,
		"error":    err.Error(),
		"event":    "provider_transport_error",
	}).Error("Provider request failed")
	return &TransportError{Provider: c.name, Err: err}
}

// apiError is the error envelope both providers nest under "error"
type apiError struct {
	Error *struct {
		Message *string `json:"message"`
		Code    any     `json:"code"`
		Type    *string `json:"type"`
	} `json:"error"`
}

func decodeAPIError(body []byte) (*apiError, error) {
	var env apiError
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Error == nil {
		return nil, errNoErrorObject
	}
	return &env, nil
}

func (e *apiError) message() string {
	if e.Error.Message == nil {
		return "Unknown error"
	}
	return *e.Error.Message
}
