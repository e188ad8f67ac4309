package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/pkg/profile"

	"github.com/freeeve/chaturaji/internal/board"
	"github.com/freeeve/chaturaji/internal/logx"
)

func main() {
	var (
		depth       = flag.Int("depth", 3, "perft depth")
		divide      = flag.Bool("divide", false, "print counts per root move")
		moves       = flag.String("moves", "", "UCI moves, space or comma separated, played before counting")
		profileMode = flag.String("profile", "", "cpu or mem profiling")
	)
	flag.Parse()

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	logger := logx.NewLogger()
	board.Init()

	pos := board.NewPosition()
	for _, text := range splitMoves(*moves) {
		m, err := board.ParseUCI(text)
		if err != nil {
			logger.Fatal().Err(err).Str("move", text).Msg("parse move")
		}
		if !pos.IsLegal(m) {
			logger.Fatal().Str("move", text).Str("side", pos.SideToMove().String()).Msg("move is not a candidate")
		}
		if _, err := pos.ApplyMove(m); err != nil {
			logger.Fatal().Err(err).Str("move", text).Msg("apply move")
		}
	}

	start := time.Now()
	if *divide {
		entries, err := board.PerftDivide(pos, *depth)
		if err != nil {
			logger.Fatal().Err(err).Msg("perft divide")
		}
		var total uint64
		for _, e := range entries {
			fmt.Printf("%s: %d\n", e.Move.UCI(), e.Nodes)
			total += e.Nodes
		}
		fmt.Printf("\nmoves: %d  nodes: %d\n", len(entries), total)
	} else {
		for d := 1; d <= *depth; d++ {
			dstart := time.Now()
			n, err := board.Perft(pos, d)
			if err != nil {
				logger.Fatal().Err(err).Int("depth", d).Msg("perft")
			}
			elapsed := time.Since(dstart)
			nps := float64(n) / max(elapsed.Seconds(), 1e-9)
			fmt.Printf("depth %d: %12d nodes  %10s  %.0f nps\n", d, n, elapsed.Round(time.Microsecond), nps)
		}
	}
	logger.Info().Int("depth", *depth).Dur("elapsed", time.Since(start)).Msg("perft complete")
}

func splitMoves(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' || s[i] == ',' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return out
}
