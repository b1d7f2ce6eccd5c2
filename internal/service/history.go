package service

import (
	"sync"

	"datainsight/internal/models"

	log "github.com/sirupsen/logrus"
)

// HistorySink stores completed queries per session
type HistorySink interface {
	Append(sessionID string, r models.QueryResult)
}

type historyEntry struct {
	sessionID string
	result    models.QueryResult
}

// HistoryRecorder appends to a HistorySink off the request path. A single
// worker drains the queue so appends land in submission order.
type HistoryRecorder struct {
	sink  HistorySink
	queue chan historyEntry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewHistoryRecorder(sink HistorySink, buffer int) *HistoryRecorder {
	if buffer <= 0 {
		buffer = 64
	}
	r := &HistoryRecorder{
		sink:  sink,
		queue: make(chan historyEntry, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *HistoryRecorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.sink.Append(e.sessionID, e.result)
	}
}

// Record queues an append and returns immediately unless the queue is full
func (r *HistoryRecorder) Record(sessionID string, result models.QueryResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.WithFields(log.Fields{
			"session_id": sessionID,
			"query_id":   result.QueryID,
			"event":      "history_dropped",
		}).Warn("History recorder closed, dropping entry")
		return
	}
	r.queue <- historyEntry{sessionID: sessionID, result: result}
}

// Close stops accepting entries and waits for queued ones to be written
func (r *HistoryRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
