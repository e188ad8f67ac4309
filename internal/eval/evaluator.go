package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chaturaji/internal/board"
)

// ErrStopped is returned by Handle.Wait when the evaluator shut down before
// the request was resolved.
var ErrStopped = errors.New("eval: evaluator stopped")

// EvaluatorConfig configures the async batched evaluator.
type EvaluatorConfig struct {
	MaxBatchSize int           // Max requests per engine call (default 1024)
	PollInterval time.Duration // How long the consumer parks on an empty queue (default 1ms)
	CacheEntries int           // Result cache capacity, 0 disables the cache
	CacheTopK    int           // Policy logits kept per cached entry (default 32)
	Logger       zerolog.Logger
}

// Request is one position to evaluate. Key is the position hash used for
// the result cache; zero skips the cache.
type Request struct {
	State []float32
	Key   uint64
}

// Result resolves a Request.
type Result struct {
	ID     uint64
	Output Output
}

// Handle is the deferred result of a submitted request. It resolves at most
// once; a failed batch leaves it unresolved.
type Handle struct {
	id      uint64
	ch      chan Result
	stopped <-chan struct{}
}

func (h *Handle) ID() uint64 { return h.id }

// Done delivers the result when it arrives.
func (h *Handle) Done() <-chan Result { return h.ch }

// Wait blocks until the result arrives, ctx ends, or the evaluator stops.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-h.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-h.stopped:
		select {
		case r := <-h.ch:
			return r, nil
		default:
			return Result{}, ErrStopped
		}
	}
}

// Evaluator turns single-position requests from many goroutines into
// batched engine calls on one consumer goroutine.
type Evaluator struct {
	cfg    EvaluatorConfig
	log    zerolog.Logger
	engine Engine
	queue  *requestQueue
	cache  *ResultCache

	pendingMu sync.Mutex
	pending   map[uint64]chan Result

	nextID atomic.Uint64

	lifeMu  sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}

	// Stats
	submitted atomic.Int64
	evaluated atomic.Int64
	batches   atomic.Int64
	failures  atomic.Int64
	abandoned atomic.Int64
	cacheHits atomic.Int64
	maxBatch  atomic.Int64
}

// NewEvaluator creates an evaluator over engine. Call Start before waiting
// on any handle.
func NewEvaluator(engine Engine, cfg EvaluatorConfig) *Evaluator {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1024
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.CacheTopK <= 0 {
		cfg.CacheTopK = 32
	}
	e := &Evaluator{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "evaluator").Logger(),
		engine:  engine,
		queue:   newRequestQueue(),
		pending: make(map[uint64]chan Result),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.CacheEntries > 0 {
		e.cache = NewResultCache(cfg.CacheEntries, cfg.CacheTopK)
	}
	return e
}

// Start launches the consumer goroutine. It exits on Stop or when ctx ends.
func (e *Evaluator) Start(ctx context.Context) {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	e.log.Info().
		Int("max_batch", e.cfg.MaxBatchSize).
		Dur("poll", e.cfg.PollInterval).
		Int("cache_entries", e.cfg.CacheEntries).
		Msg("evaluator started")
	go e.run(ctx)
}

// Stop signals the consumer and waits for it to finish its current batch.
// Requests still queued or in flight are abandoned.
func (e *Evaluator) Stop() {
	e.lifeMu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.stop)
		if !e.started {
			close(e.done)
		}
	}
	e.lifeMu.Unlock()
	<-e.done
}

// Submit enqueues req and returns its handle without blocking.
func (e *Evaluator) Submit(req Request) *Handle {
	id := e.nextID.Add(1)
	h := &Handle{id: id, ch: make(chan Result, 1), stopped: e.done}
	e.submitted.Add(1)

	if e.cache != nil && req.Key != 0 {
		if out, ok := e.cache.Get(req.Key); ok {
			e.cacheHits.Add(1)
			h.ch <- Result{ID: id, Output: out}
			return h
		}
	}

	e.pendingMu.Lock()
	e.pending[id] = h.ch
	e.pendingMu.Unlock()
	e.queue.Enqueue(queued{id: id, req: req})
	return h
}

func (e *Evaluator) run(ctx context.Context) {
	defer close(e.done)
	batch := make([]queued, 0, e.cfg.MaxBatchSize)
	for {
		select {
		case <-e.stop:
			e.log.Info().Int64("batches", e.batches.Load()).Msg("evaluator stopped")
			return
		case <-ctx.Done():
			e.log.Info().Err(ctx.Err()).Msg("evaluator context done")
			return
		default:
		}

		batch = e.queue.DequeueBatch(batch[:0], e.cfg.MaxBatchSize)
		if len(batch) == 0 {
			e.queue.Wait(e.stop, e.cfg.PollInterval)
			continue
		}
		e.process(ctx, batch)
	}
}

func (e *Evaluator) process(ctx context.Context, batch []queued) {
	states := make([][]float32, len(batch))
	for i, q := range batch {
		states[i] = q.req.State
	}

	start := time.Now()
	outs, err := e.engine.Infer(ctx, states)
	if err == nil && len(outs) != len(batch) {
		err = fmt.Errorf("engine returned %d outputs for %d states", len(outs), len(batch))
	}
	if err != nil {
		e.failures.Add(1)
		e.abandoned.Add(int64(len(batch)))
		e.log.Error().Err(err).Int("batch", len(batch)).Msg("inference failed, batch abandoned")
		e.pendingMu.Lock()
		for _, q := range batch {
			delete(e.pending, q.id)
		}
		e.pendingMu.Unlock()
		return
	}

	e.batches.Add(1)
	e.evaluated.Add(int64(len(batch)))
	for {
		cur := e.maxBatch.Load()
		if int64(len(batch)) <= cur || e.maxBatch.CompareAndSwap(cur, int64(len(batch))) {
			break
		}
	}

	for i, q := range batch {
		if e.cache != nil && q.req.Key != 0 {
			e.cache.Put(q.req.Key, outs[i])
		}
		e.pendingMu.Lock()
		ch, ok := e.pending[q.id]
		delete(e.pending, q.id)
		e.pendingMu.Unlock()
		if ok {
			ch <- Result{ID: q.id, Output: outs[i]}
		}
	}
	e.log.Debug().Int("batch", len(batch)).Dur("dur", time.Since(start)).Msg("batch evaluated")
}

// EvaluateLeaves submits one request per leaf and waits for all of them.
// Leaves whose result did not arrive are returned with a nil Policy; the
// error reports the first wait failure.
func (e *Evaluator) EvaluateLeaves(ctx context.Context, leaves []*board.Position) ([]Output, error) {
	handles := make([]*Handle, len(leaves))
	for i, p := range leaves {
		handles[i] = e.Submit(Request{State: p.EncodeNew(), Key: p.Hash()})
	}
	out := make([]Output, len(leaves))
	var firstErr error
	for i, h := range handles {
		r, err := h.Wait(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = r.Output
	}
	return out, firstErr
}

// EvaluatorStats is a snapshot of evaluator counters.
type EvaluatorStats struct {
	Submitted int64       `json:"submitted"`
	Evaluated int64       `json:"evaluated"`
	Batches   int64       `json:"batches"`
	Failures  int64       `json:"failures"`
	Abandoned int64       `json:"abandoned"`
	CacheHits int64       `json:"cache_hits"`
	MaxBatch  int64       `json:"max_batch"`
	QueueLen  int         `json:"queue_len"`
	Pending   int         `json:"pending"`
	Cache     *CacheStats `json:"cache,omitempty"`
}

// Stats returns the current evaluator counters.
func (e *Evaluator) Stats() EvaluatorStats {
	e.pendingMu.Lock()
	pending := len(e.pending)
	e.pendingMu.Unlock()
	st := EvaluatorStats{
		Submitted: e.submitted.Load(),
		Evaluated: e.evaluated.Load(),
		Batches:   e.batches.Load(),
		Failures:  e.failures.Load(),
		Abandoned: e.abandoned.Load(),
		CacheHits: e.cacheHits.Load(),
		MaxBatch:  e.maxBatch.Load(),
		QueueLen:  e.queue.Len(),
		Pending:   pending,
	}
	if e.cache != nil {
		cs := e.cache.Stats()
		st.Cache = &cs
	}
	return st
}
