package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/dataset"
	"github.com/freeeve/chaturaji/internal/httpapi"
	"github.com/freeeve/chaturaji/internal/logx"
	"github.com/freeeve/chaturaji/internal/onnx"
	"github.com/freeeve/chaturaji/internal/selfplay"
)

func main() {
	var (
		// Engine
		model   = flag.String("model", "model.onnx", "ONNX model path, or \"material\"/\"uniform\" for a built-in engine")
		ortLib  = flag.String("ort-lib", "", "onnxruntime shared library (default $ORT_LIB)")
		useCUDA = flag.Bool("cuda", false, "try the CUDA execution provider")

		// Generation
		games       = flag.Int("games", 100, "games per generation")
		generations = flag.Int("generations", 1, "generations to run (0 = until interrupted)")
		outDir      = flag.String("out", "training_data", "directory for training segments (empty = do not write)")

		// Search
		workers     = flag.Int("workers", 12, "concurrent self-play games")
		sims        = flag.Int("sims", 128, "simulations per move")
		workerBatch = flag.Int("worker-batch", 48, "leaves per worker evaluation round")
		nnBatch     = flag.Int("nn-batch", 1024, "max positions per inference call")
		cpuct       = flag.Float64("cpuct", 2.5, "exploration constant")
		cpuctBase   = flag.Float64("cpuct-base", 0, "growing exploration base (0 = constant)")
		tempDecay   = flag.Int("temp-decay", 20, "moves sampled at temperature 1 (0 = argmax from the first move)")
		alpha       = flag.Float64("dirichlet-alpha", 0.4, "root noise concentration")
		epsilon     = flag.Float64("dirichlet-eps", 0.25, "root noise weight (0 = no noise)")
		bufferSize  = flag.Int("buffer", 200000, "replay buffer capacity")
		cacheSize   = flag.Int("cache", 0, "evaluation cache entries (0 = disabled)")

		// Server
		addr = flag.String("addr", ":8017", "status listen address (empty = disabled)")

		// Logging / profiling
		logLevel    = flag.String("log-level", "info", "debug, info, warn or error")
		logJSON     = flag.Bool("log-json", false, "log raw JSON lines")
		profileMode = flag.String("profile", "", "cpu or mem profiling")
	)
	flag.Parse()

	if envModel := os.Getenv("CHATURAJI_MODEL"); envModel != "" {
		*model = envModel
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	logger := logx.NewLogger(logx.Options{Level: *logLevel, JSON: *logJSON})
	board.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := onnx.Open(*model, onnx.Config{
		LibPath:  *ortLib,
		MaxBatch: *nnBatch,
		UseCUDA:  *useCUDA,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("model", *model).Msg("open engine")
	}
	defer closeEngine()

	var writer *dataset.Writer
	if *outDir != "" {
		writer, err = dataset.NewWriter(dataset.WriterConfig{Dir: *outDir, Logger: logger})
		if err != nil {
			logger.Fatal().Err(err).Msg("create dataset writer")
		}
		defer writer.Close()
	}

	// Zero config fields select defaults; negative values switch these off.
	if *tempDecay == 0 {
		*tempDecay = -1
	}
	if *epsilon == 0 {
		*epsilon = -1
	}

	orch := selfplay.NewOrchestrator(engine, selfplay.Config{
		Workers:          *workers,
		Simulations:      *sims,
		WorkerBatchSize:  *workerBatch,
		NNBatchSize:      *nnBatch,
		CPuct:            *cpuct,
		CPuctBase:        *cpuctBase,
		TempDecayMoves:   *tempDecay,
		DirichletAlpha:   *alpha,
		DirichletEpsilon: *epsilon,
		BufferSize:       *bufferSize,
		CacheEntries:     *cacheSize,
		Output:           writer,
		Logger:           logger,
	})

	var srv *http.Server
	if *addr != "" {
		hub := httpapi.NewHub(logger)
		go hub.Run(ctx)
		orch.OnGame(hub.Publish)

		srv = &http.Server{
			Addr:        *addr,
			Handler:     httpapi.NewRouter(logger, orch, hub),
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 60 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("status server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("status server")
			}
		}()
	}

	for gen := 1; *generations == 0 || gen <= *generations; gen++ {
		start := time.Now()
		n, err := orch.Generate(ctx, *games)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Int("generation", gen).Int("samples", n).Msg("interrupted")
				break
			}
			logger.Fatal().Err(err).Int("generation", gen).Msg("self-play failed")
		}
		logger.Info().
			Int("generation", gen).
			Int("samples", n).
			Int("buffer", orch.Buffer().Len()).
			Dur("elapsed", time.Since(start)).
			Msg("generation complete")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("status server shutdown error")
		}
	}
	logger.Info().Msg("shutdown complete")
}
