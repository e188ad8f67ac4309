// Package selfplay generates training data by running many concurrent
// self-play games against one shared batched evaluator.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/dataset"
	"github.com/freeeve/chaturaji/internal/eval"
	"github.com/freeeve/chaturaji/internal/mcts"
)

// ErrRunning is returned when Generate is called while a run is active.
var ErrRunning = errors.New("selfplay: generation already running")

// Config configures the self-play orchestrator.
type Config struct {
	Workers          int             // Concurrent games (default 12)
	Simulations      int             // Simulations per move (default 128)
	WorkerBatchSize  int             // Leaves a worker gathers per evaluation round (default 48)
	NNBatchSize      int             // Max positions per engine call (default 1024)
	CPuct            float64         // Exploration constant (default 2.5)
	CPuctBase        float64         // Growing exploration term when > 0
	TempDecayMoves   int             // Moves sampled at temperature 1 before argmax play (default 20, negative for argmax from the first move)
	DirichletAlpha   float64         // Root noise concentration (default 0.4)
	DirichletEpsilon float64         // Root noise weight (default 0.25, negative disables noise)
	BufferSize       int             // Replay buffer capacity (default 200000)
	NodeChunkSize    int             // Node pool chunk size (default mcts.DefaultChunkSize)
	CacheEntries     int             // Evaluator result cache entries, 0 disables
	EvalTimeout      time.Duration   // Max wait for one worker batch (default 30s)
	RecentGames      int             // Finished game summaries kept for Recent (default 100)
	Output           *dataset.Writer // Receives one segment per Generate call when set
	Logger           zerolog.Logger
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 12
	}
	if c.Simulations <= 0 {
		c.Simulations = 128
	}
	if c.WorkerBatchSize <= 0 {
		c.WorkerBatchSize = 48
	}
	if c.NNBatchSize <= 0 {
		c.NNBatchSize = 1024
	}
	if c.CPuct <= 0 {
		c.CPuct = 2.5
	}
	if c.TempDecayMoves == 0 {
		c.TempDecayMoves = 20
	}
	if c.DirichletAlpha <= 0 {
		c.DirichletAlpha = 0.4
	}
	if c.DirichletEpsilon == 0 {
		c.DirichletEpsilon = 0.25
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 200000
	}
	if c.NodeChunkSize <= 0 {
		c.NodeChunkSize = mcts.DefaultChunkSize
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 30 * time.Second
	}
	if c.RecentGames <= 0 {
		c.RecentGames = 100
	}
}

// GameSummary describes one finished game.
type GameSummary struct {
	ID           int64                     `json:"id"`
	Worker       int                       `json:"worker"`
	Moves        int                       `json:"moves"`
	MoveList     []string                  `json:"move_list"`
	Scores       [board.NumPlayers]int     `json:"scores"`
	Rewards      [board.NumPlayers]float64 `json:"rewards"`
	Winner       string                    `json:"winner"`
	Termination  string                    `json:"termination"`
	Resignations int                       `json:"resignations"`
	Samples      int                       `json:"samples"`
	Duration     time.Duration             `json:"duration"`
	FinishedAt   time.Time                 `json:"finished_at"`
}

// Status is a snapshot of the orchestrator counters.
type Status struct {
	Running        bool                 `json:"running"`
	ActiveWorkers  int                  `json:"active_workers"`
	MaxWorkers     int                  `json:"max_workers"`
	GamesTarget    int64                `json:"games_target"`
	GamesStarted   int64                `json:"games_started"`
	GamesCompleted int64                `json:"games_completed"`
	Moves          int64                `json:"moves"`
	Samples        int64                `json:"samples"`
	Resignations   int64                `json:"resignations"`
	Simulations    int64                `json:"simulations"`
	DroppedSims    int64                `json:"dropped_simulations"`
	BufferLen      int                  `json:"buffer_len"`
	BufferCap      int                  `json:"buffer_cap"`
	Pool           mcts.PoolStats       `json:"pool"`
	Evaluator      *eval.EvaluatorStats `json:"evaluator,omitempty"`
}

// Orchestrator runs self-play workers. Every worker owns its tree; the
// node pool, the evaluator and the replay buffer are shared.
type Orchestrator struct {
	cfg    Config
	log    zerolog.Logger
	engine eval.Engine
	pool   *mcts.NodePool
	buffer *ReplayBuffer

	running   atomic.Bool
	evaluator atomic.Pointer[eval.Evaluator]
	mergeMu   sync.Mutex

	// Worker control
	activeWorkers atomic.Int32 // number of workers allowed to start games (0 = paused)
	maxWorkers    int32

	hookMu sync.RWMutex
	hooks  []func(GameSummary)

	recentMu sync.Mutex
	recent   []GameSummary

	// Stats
	target      atomic.Int64
	started     atomic.Int64
	completed   atomic.Int64
	moves       atomic.Int64
	samples     atomic.Int64
	resigns     atomic.Int64
	simulations atomic.Int64
	dropped     atomic.Int64
}

// NewOrchestrator creates an orchestrator whose evaluator batches leaves
// for engine.
func NewOrchestrator(engine eval.Engine, cfg Config) *Orchestrator {
	cfg.setDefaults()
	o := &Orchestrator{
		cfg:        cfg,
		log:        cfg.Logger.With().Str("component", "selfplay").Logger(),
		engine:     engine,
		pool:       mcts.NewNodePool(cfg.NodeChunkSize),
		buffer:     NewReplayBuffer(cfg.BufferSize),
		maxWorkers: int32(cfg.Workers),
	}
	o.activeWorkers.Store(int32(cfg.Workers))
	return o
}

// Buffer returns the shared replay buffer.
func (o *Orchestrator) Buffer() *ReplayBuffer { return o.buffer }

// OnGame registers fn to be called after every finished game. fn runs on
// the worker goroutine and must not block.
func (o *Orchestrator) OnGame(fn func(GameSummary)) {
	o.hookMu.Lock()
	defer o.hookMu.Unlock()
	o.hooks = append(o.hooks, fn)
}

// SetActiveWorkers sets the number of workers allowed to start new games
// (0 = paused, max = all). Returns the new active count.
func (o *Orchestrator) SetActiveWorkers(n int) int {
	if n < 0 {
		n = 0
	}
	if n > int(o.maxWorkers) {
		n = int(o.maxWorkers)
	}
	old := o.activeWorkers.Swap(int32(n))
	o.log.Info().Int("old", int(old)).Int("new", n).Msg("set active workers")
	return n
}

// Pause stops workers from starting new games.
func (o *Orchestrator) Pause() { o.SetActiveWorkers(0) }

// Resume lets every worker start games again.
func (o *Orchestrator) Resume() { o.SetActiveWorkers(int(o.maxWorkers)) }

// Stats returns the current status.
func (o *Orchestrator) Stats() Status {
	st := Status{
		Running:        o.running.Load(),
		ActiveWorkers:  int(o.activeWorkers.Load()),
		MaxWorkers:     int(o.maxWorkers),
		GamesTarget:    o.target.Load(),
		GamesStarted:   min(o.started.Load(), o.target.Load()),
		GamesCompleted: o.completed.Load(),
		Moves:          o.moves.Load(),
		Samples:        o.samples.Load(),
		Resignations:   o.resigns.Load(),
		Simulations:    o.simulations.Load(),
		DroppedSims:    o.dropped.Load(),
		BufferLen:      o.buffer.Len(),
		BufferCap:      o.buffer.Cap(),
		Pool:           o.pool.Stats(),
	}
	if ev := o.evaluator.Load(); ev != nil {
		es := ev.Stats()
		st.Evaluator = &es
	}
	return st
}

// Recent returns up to n finished game summaries, newest first. n <= 0
// returns all that are kept.
func (o *Orchestrator) Recent(n int) []GameSummary {
	o.recentMu.Lock()
	defer o.recentMu.Unlock()
	if n <= 0 || n > len(o.recent) {
		n = len(o.recent)
	}
	out := make([]GameSummary, 0, n)
	for i := len(o.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, o.recent[i])
	}
	return out
}

// Generate plays games self-play games across the workers and merges the
// samples into the replay buffer once every worker is done. It returns the
// number of samples merged. Samples of games finished before an error or
// cancellation are still merged.
func (o *Orchestrator) Generate(ctx context.Context, games int) (int, error) {
	if games <= 0 {
		return 0, nil
	}
	if !o.running.CompareAndSwap(false, true) {
		return 0, ErrRunning
	}
	defer o.running.Store(false)

	ev := eval.NewEvaluator(o.engine, eval.EvaluatorConfig{
		MaxBatchSize: o.cfg.NNBatchSize,
		CacheEntries: o.cfg.CacheEntries,
		Logger:       o.cfg.Logger,
	})
	o.evaluator.Store(ev)
	ev.Start(ctx)
	defer ev.Stop()

	o.target.Store(int64(games))
	o.started.Store(0)
	o.log.Info().
		Int("games", games).
		Int("workers", o.cfg.Workers).
		Int("simulations", o.cfg.Simulations).
		Int("worker_batch", o.cfg.WorkerBatchSize).
		Int("nn_batch", o.cfg.NNBatchSize).
		Msg("self-play started")
	start := time.Now()

	local := make([][]Sample, o.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		workerID := i
		g.Go(func() error {
			return o.runWorker(gctx, workerID, ev, &local[workerID])
		})
	}
	err := g.Wait()

	merged := o.merge(local)
	if o.cfg.Output != nil && len(merged) > 0 {
		if _, werr := o.cfg.Output.Write(Records(merged)); werr != nil {
			err = errors.Join(err, werr)
		}
	}

	o.log.Info().
		Int64("games", o.completed.Load()).
		Int("samples", len(merged)).
		Int("buffer", o.buffer.Len()).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("self-play finished")
	return len(merged), err
}

// merge moves every worker-local buffer into the shared buffer under one
// lock and returns the merged samples.
func (o *Orchestrator) merge(local [][]Sample) []Sample {
	o.mergeMu.Lock()
	defer o.mergeMu.Unlock()
	var all []Sample
	for i := range local {
		all = append(all, local[i]...)
		local[i] = nil
	}
	if evicted := o.buffer.AddBatch(all); evicted > 0 {
		o.log.Debug().Int("evicted", evicted).Msg("replay buffer full, oldest samples evicted")
	}
	o.samples.Add(int64(len(all)))
	return all
}

// worker is the per-goroutine self-play state.
type worker struct {
	id     int
	log    zerolog.Logger
	rng    *frand.RNG
	tree   *mcts.Tree
	search *mcts.Searcher
}

func (o *Orchestrator) runWorker(ctx context.Context, workerID int, ev mcts.LeafEvaluator, local *[]Sample) error {
	log := o.log.With().Int("worker", workerID).Logger()
	rng := frand.New()
	w := &worker{
		id:  workerID,
		log: log,
		rng: rng,
		search: mcts.NewSearcher(ev, rng, mcts.SearchConfig{
			Simulations:      o.cfg.Simulations,
			BatchSize:        o.cfg.WorkerBatchSize,
			CPuct:            o.cfg.CPuct,
			CPuctBase:        o.cfg.CPuctBase,
			DirichletAlpha:   o.cfg.DirichletAlpha,
			DirichletEpsilon: o.cfg.DirichletEpsilon,
			EvalTimeout:      o.cfg.EvalTimeout,
			Logger:           log,
		}),
		tree: mcts.NewTree(o.pool, board.NewPosition()),
	}
	defer w.tree.Release()
	log.Debug().Msg("worker started")

	for {
		// Workers with ID >= activeWorkers sleep until activated
		for int32(workerID) >= o.activeWorkers.Load() {
			if o.started.Load() >= o.target.Load() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		gameID := o.started.Add(1) - 1
		if gameID >= o.target.Load() {
			return nil
		}
		samples, summary, err := o.playGame(ctx, w, gameID)
		if err != nil {
			return err
		}
		*local = append(*local, samples...)
		o.finishGame(summary)
	}
}

// playGame plays one game to termination and returns its training steps
// with the final rewards filled in.
func (o *Orchestrator) playGame(ctx context.Context, w *worker, gameID int64) ([]Sample, GameSummary, error) {
	start := time.Now()
	pos := board.NewPosition()
	w.tree.Reset(pos)

	var steps []Sample
	var moveList []string
	resigns := 0
	for moves := 0; !pos.IsTerminal(); {
		if err := ctx.Err(); err != nil {
			return nil, GameSummary{}, err
		}
		w.tree.Reuse(pos)
		st, err := w.search.Run(ctx, w.tree, true)
		o.simulations.Add(int64(st.Simulations))
		o.dropped.Add(int64(st.Dropped))
		if err != nil {
			return nil, GameSummary{}, fmt.Errorf("game %d: %w", gameID, err)
		}

		temperature := 0.0
		if moves < o.cfg.TempDecayMoves {
			temperature = 1
		}
		side := pos.SideToMove()
		probs := mcts.ActionProbs(w.tree, temperature)

		var m board.Move
		if len(probs) > 0 {
			steps = append(steps, Sample{State: pos.EncodeNew(), Policy: sparsePolicy(probs), Player: side})
			m, err = mcts.SampleMove(probs, w.rng)
		} else {
			m, err = w.search.BestMove(w.tree)
		}
		if errors.Is(err, mcts.ErrNoMove) {
			if err := pos.Resign(side); err != nil {
				return nil, GameSummary{}, fmt.Errorf("game %d: resign %s: %w", gameID, side, err)
			}
			resigns++
			o.resigns.Add(1)
			w.log.Debug().Str("player", side.String()).Msg("no move available, resigned")
			continue
		}
		if err != nil {
			return nil, GameSummary{}, fmt.Errorf("game %d: %w", gameID, err)
		}

		if _, err := pos.ApplyMove(m); err != nil {
			return nil, GameSummary{}, fmt.Errorf("game %d: apply %s: %w", gameID, m, err)
		}
		w.tree.Advance(m)
		moveList = append(moveList, m.UCI())
		moves++
		o.moves.Add(1)
	}

	scores := pos.Result()
	rewards := board.RankRewards(scores)
	for i := range steps {
		steps[i].Rewards = rewards
	}
	summary := GameSummary{
		ID:           gameID,
		Worker:       w.id,
		Moves:        len(moveList),
		MoveList:     moveList,
		Scores:       scores,
		Rewards:      rewards,
		Winner:       pos.Winner().String(),
		Termination:  pos.Termination().String(),
		Resignations: resigns,
		Samples:      len(steps),
		Duration:     time.Since(start),
		FinishedAt:   time.Now(),
	}
	return steps, summary, nil
}

func (o *Orchestrator) finishGame(s GameSummary) {
	completed := o.completed.Add(1)
	o.log.Info().
		Int("worker", s.Worker).
		Int64("game", s.ID).
		Int64("completed", completed).
		Int64("target", o.target.Load()).
		Int("moves", s.Moves).
		Str("winner", s.Winner).
		Str("termination", s.Termination).
		Dur("dur", s.Duration).
		Msg("game finished")

	o.recentMu.Lock()
	o.recent = append(o.recent, s)
	if over := len(o.recent) - o.cfg.RecentGames; over > 0 {
		o.recent = append(o.recent[:0], o.recent[over:]...)
	}
	o.recentMu.Unlock()

	o.hookMu.RLock()
	hooks := o.hooks
	o.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}
