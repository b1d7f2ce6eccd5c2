package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datainsight/internal/llm"
	"datainsight/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// FallbackMarker prefixes text produced by the fallback provider
const FallbackMarker = "(Used fallback: %s)\n\n"

// ProviderResolver looks up a provider client by id
type ProviderResolver interface {
	Get(id string) (llm.Provider, error)
}

// AllProvidersFailedError is the terminal outcome of a dispatch. Cause is
// the error of the last provider attempted.
type AllProvidersFailedError struct {
	Attempted []string
	Cause     error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("LLM service error (tried %s): %v", strings.Join(e.Attempted, ", "), e.Cause)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.Cause }

// Dispatcher sends a query to its primary provider and, when allowed, to a
// fallback provider after the primary fails.
type Dispatcher struct {
	providers ProviderResolver
	contexts  *ContextService
	now       func() time.Time
}

func NewDispatcher(providers ProviderResolver, contexts *ContextService) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		contexts:  contexts,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to measure elapsed time
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch answers req. Provider calls are detached from ctx cancellation;
// only each provider's own timeout ends an in-flight request.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	start := d.now()
	queryID := uuid.NewString()

	primary, err := d.providers.Get(req.Provider)
	if err != nil {
		log.WithFields(log.Fields{
			"query_id": queryID,
			"provider": req.Provider,
			"event":    "unknown_provider",
		}).Warn("Unknown primary provider")
		return models.QueryResult{}, err
	}

	prompt := BuildPrompt(req.Query, d.datasetContext(queryID, req.DatasetID), req.QueryType)
	callCtx := context.WithoutCancel(ctx)

	text, primaryErr := primary.GenerateResponse(callCtx, prompt)
	if primaryErr == nil {
		return d.result(req, queryID, start, primary.Name(), text, false), nil
	}

	log.WithFields(log.Fields{
		"query_id": queryID,
		"provider": primary.Name(),
		"error":    primaryErr.Error(),
		"event":    "primary_failed",
	}).Warn("Primary LLM failed")

	fallback := d.fallbackFor(req, primary)
	if fallback == nil {
		return models.QueryResult{}, d.fail(queryID, start, []string{primary.Name()}, primaryErr)
	}

	log.WithFields(log.Fields{
		"query_id": queryID,
		"from":     primary.Name(),
		"to":       fallback.Name(),
		"event":    "fallback_attempt",
	}).Info("Attempting fallback provider")

	text, fallbackErr := fallback.GenerateResponse(callCtx, prompt)
	if fallbackErr != nil {
		return models.QueryResult{}, d.fail(queryID, start, []string{primary.Name(), fallback.Name()}, fallbackErr)
	}
	return d.result(req, queryID, start, fallback.Name(), fmt.Sprintf(FallbackMarker, fallback.Name())+text, true), nil
}

// fallbackFor returns the fallback provider or nil when none may be tried
func (d *Dispatcher) fallbackFor(req models.QueryRequest, primary llm.Provider) llm.Provider {
	if !req.EnableFallback {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(req.FallbackProvider), strings.TrimSpace(req.Provider)) {
		return nil
	}
	fallback, err := d.providers.Get(req.FallbackProvider)
	if err != nil {
		log.WithFields(log.Fields{
			"provider": req.FallbackProvider,
			"event":    "unknown_fallback",
		}).Warn("Fallback provider is not registered")
		return nil
	}
	if fallback.Name() == primary.Name() {
		return nil
	}
	return fallback
}

func (d *Dispatcher) datasetContext(queryID, datasetID string) *models.DatasetContext {
	if datasetID == "" || d.contexts == nil {
		return nil
	}
	dc, err := d.contexts.ForDataset(datasetID)
	if err != nil {
		log.WithFields(log.Fields{
			"query_id":   queryID,
			"dataset_id": datasetID,
			"error":      err.Error(),
			"event":      "context_unavailable",
		}).Warn("Failed to get dataset context, continuing without it")
		return nil
	}
	return dc
}

func (d *Dispatcher) result(req models.QueryRequest, queryID string, start time.Time, provider, text string, fallback bool) models.QueryResult {
	end := d.now()
	elapsed := end.Sub(start)

	log.WithFields(log.Fields{
		"query_id":   queryID,
		"provider":   provider,
		"fallback":   fallback,
		"latency_ms": elapsed.Milliseconds(),
		"event":      "success",
	}).Info("Query answered")

	return models.QueryResult{
		QueryID:        queryID,
		Query:          req.Query,
		Response:       text,
		Provider:       provider,
		FallbackUsed:   fallback,
		DatasetID:      req.DatasetID,
		Elapsed:        elapsed,
		ProcessingTime: elapsed.Seconds(),
		Timestamp:      end,
	}
}

func (d *Dispatcher) fail(queryID string, start time.Time, attempted []string, cause error) error {
	err := &AllProvidersFailedError{Attempted: attempted, Cause: cause}
	log.WithFields(log.Fields{
		"query_id":   queryID,
		"attempted":  attempted,
		"error":      err.Error(),
		"latency_ms": d.now().Sub(start).Milliseconds(),
		"event":      "query_failed",
	}).Error("All providers failed")
	return err
}
