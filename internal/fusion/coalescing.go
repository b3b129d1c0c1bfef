package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// inFlightRequest tracks a single cascade run that multiple callers may wait for.
type inFlightRequest struct {
	mu      sync.Mutex
	result  models.Snapshot
	err     error
	done    bool
	waiters []chan struct{}
}

// requestCoalescer prevents a thundering herd of cascade runs by coalescing
// concurrent lookups for the same coordinate key.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo checks if a lookup for key is already in-flight. If yes, waits for
// its result; if no, executes fn and registers the request. Respects context
// cancellation and the coalescer timeout to prevent indefinite blocking.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.Snapshot, error)) (models.Snapshot, error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if exists {
		notify := make(chan struct{})
		req.mu.Lock()
		if req.done {
			result := req.result
			err := req.err
			req.mu.Unlock()
			rc.mu.Unlock()
			return result, err
		}
		req.waiters = append(req.waiters, notify)
		req.mu.Unlock()
		rc.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
		defer cancel()
		select {
		case <-notify:
			req.mu.Lock()
			result := req.result
			err := req.err
			req.mu.Unlock()
			return result, err
		case <-waitCtx.Done():
			return models.Snapshot{}, waitCtx.Err()
		}
	}

	req = &inFlightRequest{waiters: make([]chan struct{}, 0)}
	rc.inFlight[key] = req
	rc.mu.Unlock()

	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		rc.cleanup(key)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	notify := make(chan struct{})
	req.mu.Lock()
	if req.done {
		result := req.result
		err := req.err
		req.mu.Unlock()
		return result, err
	}
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	select {
	case <-notify:
		req.mu.Lock()
		result := req.result
		err := req.err
		req.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.Snapshot{}, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key after it completes.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
