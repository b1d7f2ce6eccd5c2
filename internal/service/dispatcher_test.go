package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"datainsight/internal/llm"
	"datainsight/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	delay time.Duration

	mu      sync.Mutex
	prompts []string
	ctxErr  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.ctxErr = ctx.Err()
	return f.text, f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type stubLookup map[string]*models.Dataset

func (s stubLookup) Resolve(id string) (*models.Dataset, error) {
	d, ok := s[id]
	if !ok {
		return nil, errors.New("dataset not found")
	}
	return d, nil
}

func newFakes() (*fakeProvider, *fakeProvider) {
	primary := &fakeProvider{name: llm.Gemini, text: "primary answer"}
	fallback := &fakeProvider{name: llm.DeepSeek, text: "fallback answer"}
	return primary, fallback
}

func request(fallback bool) models.QueryRequest {
	return models.QueryRequest{
		Query:            "what is in here?",
		Provider:         llm.Gemini,
		EnableFallback:   fallback,
		FallbackProvider: llm.DeepSeek,
		SessionID:        "s1",
	}
}

func TestDispatch_PrimarySuccess(t *testing.T) {
	primary, fallback := newFakes()
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	res, err := d.Dispatch(context.Background(), request(true))
	require.NoError(t, err)
	assert.Equal(t, "primary answer", res.Response)
	assert.Equal(t, llm.Gemini, res.Provider)
	assert.False(t, res.FallbackUsed)
	assert.NotEmpty(t, res.QueryID)
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatch_UnknownPrimary(t *testing.T) {
	primary, fallback := newFakes()
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	req := request(true)
	req.Provider = "openai"
	_, err := d.Dispatch(context.Background(), req)

	var uerr *llm.UnknownProviderError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 0, primary.calls())
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatch_FallbackDisabled(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = &llm.ProviderError{Provider: llm.Gemini, StatusCode: 500, Detail: "boom"}
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	_, err := d.Dispatch(context.Background(), request(false))

	var all *AllProvidersFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, []string{llm.Gemini}, all.Attempted)
	var perr *llm.ProviderError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatch_FallbackUsed(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = &llm.TimeoutError{Provider: llm.Gemini}
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	res, err := d.Dispatch(context.Background(), request(true))
	require.NoError(t, err)
	assert.Equal(t, "(Used fallback: deepseek)\n\nfallback answer", res.Response)
	assert.Equal(t, llm.DeepSeek, res.Provider)
	assert.True(t, res.FallbackUsed)
	require.Equal(t, 1, fallback.calls())
	assert.Equal(t, primary.prompts[0], fallback.prompts[0])
}

func TestDispatch_FallbackEqualsPrimary(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = errors.New("down")
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	req := request(true)
	req.FallbackProvider = "GEMINI"
	_, err := d.Dispatch(context.Background(), req)

	var all *AllProvidersFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, []string{llm.Gemini}, all.Attempted)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatch_UnknownFallbackIsTerminal(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = errors.New("down")
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	req := request(true)
	req.FallbackProvider = "claude"
	_, err := d.Dispatch(context.Background(), req)

	var all *AllProvidersFailedError
	require.ErrorAs(t, err, &all)
	assert.EqualError(t, all.Cause, "down")
	assert.Equal(t, 0, fallback.calls())
}

func TestDispatch_BothFailSurfacesFallbackError(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = &llm.TransportError{Provider: llm.Gemini, Err: errors.New("refused")}
	fallback.err = &llm.ResponseFormatError{Provider: llm.DeepSeek, Detail: "missing"}
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	_, err := d.Dispatch(context.Background(), request(true))

	var all *AllProvidersFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, []string{llm.Gemini, llm.DeepSeek}, all.Attempted)
	var rerr *llm.ResponseFormatError
	assert.ErrorAs(t, err, &rerr)
	var terr *llm.TransportError
	assert.False(t, errors.As(err, &terr))
}

func TestDispatch_MissingDatasetContinuesWithoutContext(t *testing.T) {
	primary, fallback := newFakes()
	d := NewDispatcher(llm.NewRegistry(primary, fallback), NewContextService(stubLookup{}))

	req := request(false)
	req.DatasetID = "nope"
	res, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "nope", res.DatasetID)
	assert.NotContains(t, primary.prompts[0], "DATASET INFORMATION")
}

func TestDispatch_IncludesDatasetContext(t *testing.T) {
	primary, fallback := newFakes()
	lookup := stubLookup{"d1": {ID: "d1", Name: "sales", RowCount: 3, Columns: []string{"x"}}}
	d := NewDispatcher(llm.NewRegistry(primary, fallback), NewContextService(lookup))

	req := request(false)
	req.DatasetID = "d1"
	_, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, primary.prompts[0], "Name: sales")
}

func TestDispatch_ElapsedCoversFallback(t *testing.T) {
	primary, fallback := newFakes()
	primary.err = errors.New("down")

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	now := func() time.Time {
		ticks++
		return clock.Add(time.Duration(ticks) * time.Second)
	}
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil).WithClock(now)

	res, err := d.Dispatch(context.Background(), request(true))
	require.NoError(t, err)
	assert.Equal(t, time.Second, res.Elapsed)
	assert.Equal(t, 1.0, res.ProcessingTime)
}

func TestDispatch_CallerCancellationDoesNotReachProvider(t *testing.T) {
	primary, fallback := newFakes()
	primary.delay = 20 * time.Millisecond
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	res, err := d.Dispatch(ctx, request(false))
	require.NoError(t, err)
	assert.Equal(t, "primary answer", res.Response)
	assert.NoError(t, primary.ctxErr)
}

func TestDispatch_ConcurrentQueries(t *testing.T) {
	primary, fallback := newFakes()
	primary.delay = 10 * time.Millisecond
	d := NewDispatcher(llm.NewRegistry(primary, fallback), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Dispatch(context.Background(), request(true))
			assert.NoError(t, err)
			assert.True(t, strings.HasPrefix(res.Response, "primary"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, primary.calls())
}
