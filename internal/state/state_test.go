package state

import (
	"fmt"
	"sync"
	"testing"

	"datainsight/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetStore(t *testing.T) {
	s := NewDatasetStore()
	s.Put(&models.Dataset{ID: "a", FilePath: "/tmp/up/a.csv"})
	s.Put(&models.Dataset{ID: "b", FilePath: "/tmp/up/b.csv"})

	d, err := s.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.ID)

	_, err = s.Resolve("zzz")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	d, ok := s.DeleteByPath("/tmp/up/../up/b.csv")
	require.True(t, ok)
	assert.Equal(t, "b", d.ID)
	_, ok = s.DeleteByPath("/tmp/up/b.csv")
	assert.False(t, ok)

	_, err = s.Delete("a")
	require.NoError(t, err)
	_, err = s.Delete("a")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestHistoryStore_EvictsOldest(t *testing.T) {
	s := NewHistoryStore(DefaultHistoryLimit)
	for i := 0; i < 51; i++ {
		s.Append("s", models.QueryResult{QueryID: fmt.Sprintf("q%d", i)})
	}

	h := s.Get("s")
	require.Len(t, h, 50)
	assert.Equal(t, "q1", h[0].QueryID)
	assert.Equal(t, "q50", h[49].QueryID)
}

func TestHistoryStore_InsertionOrder(t *testing.T) {
	s := NewHistoryStore(0)
	s.Append("s", models.QueryResult{QueryID: "first"})
	s.Append("s", models.QueryResult{QueryID: "second"})
	s.Append("other", models.QueryResult{QueryID: "x"})

	h := s.Get("s")
	require.Len(t, h, 2)
	assert.Equal(t, "first", h[0].QueryID)
	assert.Equal(t, "second", h[1].QueryID)

	s.Clear("s")
	assert.Empty(t, s.Get("s"))
	assert.Len(t, s.Get("other"), 1)
}

func TestHistoryStore_ConcurrentAppendsStayBounded(t *testing.T) {
	s := NewHistoryStore(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append("shared", models.QueryResult{QueryID: fmt.Sprintf("%d-%d", g, i)})
			}
		}(g)
	}
	wg.Wait()

	h := s.Get("shared")
	assert.Len(t, h, 50)
	seen := map[string]bool{}
	for _, r := range h {
		assert.False(t, seen[r.QueryID])
		seen[r.QueryID] = true
	}
}

func TestHistoryStore_AppendRacingClearIsKept(t *testing.T) {
	s := NewHistoryStore(0)
	s.Append("s", models.QueryResult{QueryID: "before"})

	// an append that looked the session up before Clear ran
	stale := s.session("s", false)
	require.NotNil(t, stale)
	s.Clear("s")

	assert.False(t, s.appendTo(stale, models.QueryResult{QueryID: "late"}))
	s.Append("s", models.QueryResult{QueryID: "late"})

	h := s.Get("s")
	require.Len(t, h, 1)
	assert.Equal(t, "late", h[0].QueryID)
}

func TestHistoryStore_ConcurrentAppendAndClear(t *testing.T) {
	s := NewHistoryStore(0)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Append("s", models.QueryResult{QueryID: fmt.Sprintf("q%d", i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.Clear("s")
		}
	}()
	wg.Wait()

	s.Append("s", models.QueryResult{QueryID: "last"})
	h := s.Get("s")
	require.NotEmpty(t, h)
	assert.Equal(t, "last", h[len(h)-1].QueryID)
}
