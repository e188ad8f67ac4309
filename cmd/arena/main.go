package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/eval"
	"github.com/freeeve/chaturaji/internal/logx"
	"github.com/freeeve/chaturaji/internal/onnx"
	"github.com/freeeve/chaturaji/internal/selfplay"
)

func main() {
	var (
		candidate   = flag.String("candidate", "model.onnx", "candidate ONNX model, or \"material\"/\"uniform\"")
		baseline    = flag.String("baseline", "material", "baseline ONNX model, or \"material\"/\"uniform\"")
		ortLib      = flag.String("ort-lib", "", "onnxruntime shared library (default $ORT_LIB)")
		useCUDA     = flag.Bool("cuda", false, "try the CUDA execution provider")
		games       = flag.Int("games", 40, "games to play")
		parallel    = flag.Int("parallel", 4, "games played concurrently")
		sims        = flag.Int("sims", 128, "simulations per move")
		batch       = flag.Int("batch", 16, "leaves per evaluation round")
		cpuct       = flag.Float64("cpuct", 2.5, "exploration constant")
		logLevel    = flag.String("log-level", "info", "debug, info, warn or error")
		profileMode = flag.String("profile", "", "cpu or mem profiling")
	)
	flag.Parse()

	if envModel := os.Getenv("CHATURAJI_MODEL"); envModel != "" {
		*candidate = envModel
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	logger := logx.NewLogger(logx.Options{Level: *logLevel})
	board.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := onnx.Config{LibPath: *ortLib, UseCUDA: *useCUDA, Logger: logger}
	cand, closeCand, err := onnx.Open(*candidate, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("model", *candidate).Msg("open candidate")
	}
	defer closeCand()
	base, closeBase, err := onnx.Open(*baseline, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("model", *baseline).Msg("open baseline")
	}
	defer closeBase()

	arena := selfplay.NewArena(eval.Direct{Engine: cand}, eval.Direct{Engine: base}, selfplay.ArenaConfig{
		Simulations: *sims,
		BatchSize:   *batch,
		CPuct:       *cpuct,
		Parallel:    *parallel,
		Logger:      logger,
	})
	report, err := arena.Run(ctx, *games)
	if err != nil {
		logger.Error().Err(err).Int("completed", report.Games).Msg("arena stopped early")
	}

	logger.Info().
		Str("candidate", *candidate).
		Str("baseline", *baseline).
		Int("games", report.Games).
		Ints("rank_counts", report.RankCounts[:]).
		Float64("first_place_pct", 100*report.FirstPlaceRate).
		Float64("average_rank", report.AverageRank).
		Dur("average_game", report.AverageGame).
		Msg("arena finished")
}
