package selfplay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/mcts"
)

// ArenaConfig configures a strength test.
type ArenaConfig struct {
	Simulations int     // Simulations per move (default 128)
	BatchSize   int     // Leaves per evaluation round (default 48)
	CPuct       float64 // Exploration constant (default 2.5)
	Parallel    int     // Games played concurrently (default 1)
	Logger      zerolog.Logger
}

// ArenaGame is the outcome of one arena game.
type ArenaGame struct {
	Index    int                   `json:"index"`
	Seat     string                `json:"seat"`
	Rank     int                   `json:"rank"` // 1 = first place
	Scores   [board.NumPlayers]int `json:"scores"`
	Moves    int                   `json:"moves"`
	Duration time.Duration         `json:"duration"`
}

// ArenaReport aggregates a strength test. RankCounts[0] counts the
// candidate's first places.
type ArenaReport struct {
	Games          int                   `json:"games"`
	RankCounts     [board.NumPlayers]int `json:"rank_counts"`
	FirstPlaceRate float64               `json:"first_place_rate"`
	AverageRank    float64               `json:"average_rank"`
	AverageGame    time.Duration         `json:"average_game"`
	Results        []ArenaGame           `json:"results"`
}

// Arena plays a candidate evaluator against a baseline. The candidate
// takes seat index%4 in game index; the baseline plays the other three.
type Arena struct {
	cfg       ArenaConfig
	log       zerolog.Logger
	candidate mcts.LeafEvaluator
	baseline  mcts.LeafEvaluator
	pool      *mcts.NodePool
}

// NewArena creates an arena between candidate and baseline.
func NewArena(candidate, baseline mcts.LeafEvaluator, cfg ArenaConfig) *Arena {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &Arena{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "arena").Logger(),
		candidate: candidate,
		baseline:  baseline,
		pool:      mcts.NewNodePool(mcts.DefaultChunkSize),
	}
}

// Run plays games games and reports the candidate's placings.
func (a *Arena) Run(ctx context.Context, games int) (ArenaReport, error) {
	report := ArenaReport{Results: make([]ArenaGame, 0, games)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallel)
	for i := 0; i < games; i++ {
		index := i
		g.Go(func() error {
			res, err := a.playGame(gctx, index)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Results = append(report.Results, res)
			mu.Unlock()
			a.log.Info().
				Int("game", index).
				Str("seat", res.Seat).
				Int("rank", res.Rank).
				Ints("scores", res.Scores[:]).
				Dur("dur", res.Duration).
				Msg("arena game finished")
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Index < report.Results[j].Index })
	var total time.Duration
	rankSum := 0
	for _, r := range report.Results {
		report.RankCounts[r.Rank-1]++
		rankSum += r.Rank
		total += r.Duration
	}
	report.Games = len(report.Results)
	if report.Games > 0 {
		report.FirstPlaceRate = float64(report.RankCounts[0]) / float64(report.Games)
		report.AverageRank = float64(rankSum) / float64(report.Games)
		report.AverageGame = total / time.Duration(report.Games)
	}
	return report, err
}

func (a *Arena) playGame(ctx context.Context, index int) (ArenaGame, error) {
	start := time.Now()
	seat := board.Player(index % board.NumPlayers)
	rng := frand.New()
	cfg := mcts.SearchConfig{
		Simulations: a.cfg.Simulations,
		BatchSize:   a.cfg.BatchSize,
		CPuct:       a.cfg.CPuct,
		Logger:      a.cfg.Logger,
	}
	candidate := mcts.NewSearcher(a.candidate, rng, cfg)
	baseline := mcts.NewSearcher(a.baseline, rng, cfg)

	pos := board.NewPosition()
	tree := mcts.NewTree(a.pool, pos)
	defer tree.Release()

	moves := 0
	for !pos.IsTerminal() {
		side := pos.SideToMove()
		s := baseline
		if side == seat {
			s = candidate
		}
		tree.Reset(pos)
		if _, err := s.Run(ctx, tree, false); err != nil {
			return ArenaGame{}, fmt.Errorf("arena game %d: %w", index, err)
		}
		m, err := s.BestMove(tree)
		if errors.Is(err, mcts.ErrNoMove) {
			if err := pos.Resign(side); err != nil {
				return ArenaGame{}, fmt.Errorf("arena game %d: resign %s: %w", index, side, err)
			}
			continue
		}
		if err != nil {
			return ArenaGame{}, fmt.Errorf("arena game %d: %w", index, err)
		}
		if _, err := pos.ApplyMove(m); err != nil {
			return ArenaGame{}, fmt.Errorf("arena game %d: apply %s: %w", index, m, err)
		}
		moves++
	}

	scores := pos.Result()
	return ArenaGame{
		Index:    index,
		Seat:     seat.String(),
		Rank:     rankOf(seat, scores),
		Scores:   scores,
		Moves:    moves,
		Duration: time.Since(start),
	}, nil
}

// rankOf returns pl's 1-based place when players are sorted by score,
// ties keeping seat order.
func rankOf(pl board.Player, scores [board.NumPlayers]int) int {
	order := []board.Player{board.Red, board.Blue, board.Yellow, board.Green}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	for i, p := range order {
		if p == pl {
			return i + 1
		}
	}
	return board.NumPlayers
}
