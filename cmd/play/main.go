package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lukechampine.com/frand"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/eval"
	"github.com/freeeve/chaturaji/internal/logx"
	"github.com/freeeve/chaturaji/internal/mcts"
	"github.com/freeeve/chaturaji/internal/onnx"
)

func main() {
	var (
		model    = flag.String("model", "model.onnx", "ONNX model path, or \"material\"/\"uniform\" for a built-in engine")
		ortLib   = flag.String("ort-lib", "", "onnxruntime shared library (default $ORT_LIB)")
		useCUDA  = flag.Bool("cuda", false, "try the CUDA execution provider")
		sims     = flag.Int("sims", 400, "simulations per move")
		batch    = flag.Int("batch", 16, "leaves per evaluation round")
		cpuct    = flag.Float64("cpuct", 2.5, "exploration constant")
		maxMoves = flag.Int("max-moves", 0, "stop after this many moves (0 = play to the end)")
		logLevel = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	if envModel := os.Getenv("CHATURAJI_MODEL"); envModel != "" {
		*model = envModel
	}

	logger := logx.NewLogger(logx.Options{Level: *logLevel})
	board.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := onnx.Open(*model, onnx.Config{LibPath: *ortLib, UseCUDA: *useCUDA, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Str("model", *model).Msg("open engine")
	}
	defer closeEngine()

	searcher := mcts.NewSearcher(eval.Direct{Engine: engine}, frand.New(), mcts.SearchConfig{
		Simulations: *sims,
		BatchSize:   *batch,
		CPuct:       *cpuct,
		Logger:      logger,
	})

	pos := board.NewPosition()
	tree := mcts.NewTree(mcts.NewNodePool(mcts.DefaultChunkSize), pos)
	defer tree.Release()

	start := time.Now()
	moves := 0
	for !pos.IsTerminal() && (*maxMoves == 0 || moves < *maxMoves) {
		side := pos.SideToMove()
		tree.Reuse(pos)
		st, err := searcher.Run(ctx, tree, false)
		if err != nil {
			logger.Fatal().Err(err).Int("move", moves+1).Msg("search failed")
		}
		m, err := searcher.BestMove(tree)
		if errors.Is(err, mcts.ErrNoMove) {
			if err := pos.Resign(side); err != nil {
				logger.Fatal().Err(err).Str("player", side.String()).Msg("resign")
			}
			fmt.Printf("%4d. %-6s resigns\n", moves+1, side)
			continue
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("best move")
		}

		san := pos.SAN(m)
		if _, err := pos.ApplyMove(m); err != nil {
			logger.Fatal().Err(err).Str("move", m.UCI()).Msg("apply move")
		}
		tree.Advance(m)
		moves++
		fmt.Printf("%4d. %-6s %-8s %-6s visits=%d scores=%v\n", moves, side, san, m.UCI(), st.Evaluated+st.TerminalLeaves, pos.Scores())
	}

	fmt.Printf("\nresult: %v  winner: %s  termination: %s  moves: %d  time: %s\n",
		pos.Result(), pos.Winner(), pos.Termination(), moves, time.Since(start).Round(time.Millisecond))
}
