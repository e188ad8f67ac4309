package selfplay

import (
	"context"
	"errors"
	"math"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/dataset"
	"github.com/freeeve/chaturaji/internal/eval"
)

func TestMain(m *testing.M) {
	board.Init()
	os.Exit(m.Run())
}

func smallConfig() Config {
	return Config{
		Workers:         2,
		Simulations:     4,
		WorkerBatchSize: 2,
		NNBatchSize:     16,
		NodeChunkSize:   1024,
		Logger:          zerolog.Nop(),
	}
}

func TestGenerate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dir := t.TempDir()
	w, err := dataset.NewWriter(dataset.WriterConfig{Dir: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cfg := smallConfig()
	cfg.Output = w
	o := NewOrchestrator(eval.UniformEngine{}, cfg)
	var hooked atomic.Int32
	o.OnGame(func(GameSummary) { hooked.Add(1) })

	n, err := o.Generate(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || n != o.Buffer().Len() {
		t.Fatalf("generated %d samples, buffer holds %d", n, o.Buffer().Len())
	}
	if hooked.Load() != 3 {
		t.Errorf("hook called %d times, want 3", hooked.Load())
	}

	st := o.Stats()
	if st.Running || st.GamesCompleted != 3 || st.Samples != int64(n) || st.Pool.Live != 0 {
		t.Errorf("status = %+v", st)
	}
	if st.Evaluator == nil || st.Evaluator.Evaluated == 0 {
		t.Errorf("evaluator stats = %+v", st.Evaluator)
	}

	recent := o.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("recent = %d summaries", len(recent))
	}
	seen := map[int64]bool{}
	total := 0
	for _, s := range recent {
		seen[s.ID] = true
		total += s.Samples
		if s.Termination == board.NotTerminated.String() {
			t.Errorf("game %d ended without a termination reason", s.ID)
		}
		if s.Moves != len(s.MoveList) {
			t.Errorf("game %d: moves %d, list %d", s.ID, s.Moves, len(s.MoveList))
		}
	}
	if len(seen) != 3 || total != n {
		t.Errorf("ids = %v, summary samples = %d, want %d", seen, total, n)
	}
	if got := o.Recent(1); len(got) != 1 || got[0].ID != recent[0].ID {
		t.Errorf("Recent(1) = %+v", got)
	}

	for i, s := range o.Buffer().Snapshot() {
		if len(s.State) != board.EncodedSize {
			t.Fatalf("sample %d: state len %d", i, len(s.State))
		}
		sum := 0.0
		for _, e := range s.Policy {
			sum += float64(e.Prob)
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Fatalf("sample %d: policy sums to %v", i, sum)
		}
		rsum := 0.0
		for _, r := range s.Rewards {
			rsum += r
		}
		if math.Abs(rsum) > 1e-9 {
			t.Fatalf("sample %d: rewards %v do not sum to zero", i, s.Rewards)
		}
	}

	paths, err := dataset.ListSegments(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("segments = %v", paths)
	}
	records, err := dataset.ReadFile(paths[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != n {
		t.Errorf("segment holds %d records, want %d", len(records), n)
	}
}

func TestGenerateArgmaxFromFirstMove(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	cfg := smallConfig()
	cfg.Workers = 1
	cfg.TempDecayMoves = -1
	cfg.DirichletEpsilon = -1
	o := NewOrchestrator(eval.UniformEngine{}, cfg)
	if o.cfg.TempDecayMoves != -1 || o.cfg.DirichletEpsilon != -1 {
		t.Fatalf("config = %+v, want negative values kept", o.cfg)
	}
	n, err := o.Generate(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("no samples")
	}
	for i, s := range o.Buffer().Snapshot() {
		nonzero := 0
		for _, e := range s.Policy {
			if e.Prob != 0 {
				nonzero++
				if e.Prob != 1 {
					t.Fatalf("sample %d: policy %+v, want one-hot", i, s.Policy)
				}
			}
		}
		if nonzero != 1 {
			t.Fatalf("sample %d: %d nonzero entries, want 1", i, nonzero)
		}
	}

	d := Config{}
	d.setDefaults()
	if d.TempDecayMoves != 20 || d.DirichletEpsilon != 0.25 {
		t.Errorf("defaults = %d / %v", d.TempDecayMoves, d.DirichletEpsilon)
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := NewOrchestrator(eval.UniformEngine{}, smallConfig())
	n, err := o.Generate(ctx, 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n != 0 || o.Buffer().Len() != 0 {
		t.Errorf("samples = %d, buffer = %d", n, o.Buffer().Len())
	}
	if o.Stats().Pool.Live != 0 {
		t.Errorf("live nodes = %d", o.Stats().Pool.Live)
	}
}

func TestPauseAndConcurrentGenerate(t *testing.T) {
	o := NewOrchestrator(eval.UniformEngine{}, smallConfig())
	o.Pause()
	if st := o.Stats(); st.ActiveWorkers != 0 || st.MaxWorkers != 2 {
		t.Fatalf("status after pause = %+v", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(ctx, 1)
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !o.Stats().Running {
		if time.Now().After(deadline) {
			t.Fatal("generation never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := o.Generate(context.Background(), 1); !errors.Is(err, ErrRunning) {
		t.Errorf("second Generate err = %v, want ErrRunning", err)
	}
	time.Sleep(50 * time.Millisecond)
	if st := o.Stats(); st.GamesStarted != 0 || st.GamesCompleted != 0 {
		t.Errorf("paused orchestrator played: %+v", st)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSetActiveWorkers(t *testing.T) {
	o := NewOrchestrator(eval.UniformEngine{}, smallConfig())
	tests := []struct {
		in, want int
	}{
		{-3, 0},
		{1, 1},
		{2, 2},
		{9, 2},
	}
	for _, tt := range tests {
		if got := o.SetActiveWorkers(tt.in); got != tt.want {
			t.Errorf("SetActiveWorkers(%d) = %d, want %d", tt.in, got, tt.want)
		}
		if got := o.Stats().ActiveWorkers; got != tt.want {
			t.Errorf("after SetActiveWorkers(%d): active = %d", tt.in, got)
		}
	}
	o.Pause()
	o.Resume()
	if got := o.Stats().ActiveWorkers; got != 2 {
		t.Errorf("active after resume = %d", got)
	}
}

func TestArena(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	a := NewArena(
		eval.Direct{Engine: eval.MaterialEngine{}},
		eval.Direct{Engine: eval.UniformEngine{}},
		ArenaConfig{Simulations: 2, BatchSize: 2, Parallel: 2, Logger: zerolog.Nop()},
	)
	report, err := a.Run(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if report.Games != 4 || len(report.Results) != 4 {
		t.Fatalf("report = %+v", report)
	}
	sum := 0
	for _, c := range report.RankCounts {
		sum += c
	}
	if sum != 4 {
		t.Errorf("rank counts %v sum to %d", report.RankCounts, sum)
	}
	for i, r := range report.Results {
		if r.Index != i || r.Seat != board.Player(i%4).String() {
			t.Errorf("result %d: index %d seat %s", i, r.Index, r.Seat)
		}
		if r.Rank < 1 || r.Rank > 4 {
			t.Errorf("result %d: rank %d", i, r.Rank)
		}
	}
	if want := float64(report.RankCounts[0]) / 4; report.FirstPlaceRate != want {
		t.Errorf("first place rate = %v, want %v", report.FirstPlaceRate, want)
	}
	if a.pool.Live() != 0 {
		t.Errorf("live nodes = %d", a.pool.Live())
	}
}

func TestRankOf(t *testing.T) {
	tests := []struct {
		name   string
		pl     board.Player
		scores [board.NumPlayers]int
		want   int
	}{
		{"clear winner", board.Yellow, [4]int{3, 5, 20, 1}, 1},
		{"last", board.Green, [4]int{3, 5, 20, 1}, 4},
		{"tie keeps seat order", board.Blue, [4]int{7, 7, 0, 0}, 2},
		{"tie first seat", board.Red, [4]int{7, 7, 0, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rankOf(tt.pl, tt.scores); got != tt.want {
				t.Errorf("rankOf = %d, want %d", got, tt.want)
			}
		})
	}
}
