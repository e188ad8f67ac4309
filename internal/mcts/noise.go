package mcts

import (
	"math"

	"github.com/samber/lo"

	"github.com/freeeve/chaturaji/internal/board"
)

// RNG is the randomness source used for noise and move sampling. Both
// *frand.RNG and *rand.Rand satisfy it.
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// Dirichlet draws n samples from a symmetric Dirichlet(alpha) distribution.
// A degenerate draw (sum below 1e-9) falls back to uniform.
func Dirichlet(rng RNG, alpha float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	sum := 0.0
	for i := range out {
		out[i] = Gamma(rng, alpha)
		sum += out[i]
	}
	if sum < 1e-9 {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Gamma samples Gamma(alpha, 1) with the Marsaglia-Tsang method. Shapes
// below one use the boost Gamma(alpha+1) * U^(1/alpha).
func Gamma(rng RNG, alpha float64) float64 {
	if alpha <= 0 {
		return 0
	}
	if alpha < 1 {
		u := rng.Float64()
		return Gamma(rng, alpha+1) * math.Pow(u, 1/alpha)
	}
	d := alpha - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := normal(rng)
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// normal draws a standard normal variate with the Box-Muller transform.
func normal(rng RNG) float64 {
	for {
		u1 := rng.Float64()
		if u1 <= 0 {
			continue
		}
		u2 := rng.Float64()
		return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}
}

// AddNoise returns a copy of policy with Dirichlet(alpha) noise mixed in:
// (1-eps)*p + eps*noise, the noise drawn in sorted move order. A
// non-positive alpha or eps returns policy unchanged.
func AddNoise(policy map[board.Move]float64, rng RNG, alpha, eps float64) map[board.Move]float64 {
	if len(policy) == 0 || alpha <= 0 || eps <= 0 {
		return policy
	}
	moves := lo.Keys(policy)
	board.SortMoves(moves)
	noise := Dirichlet(rng, alpha, len(moves))
	out := make(map[board.Move]float64, len(policy))
	for i, m := range moves {
		out[m] = (1-eps)*policy[m] + eps*noise[i]
	}
	return out
}
