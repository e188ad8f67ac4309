package board

import (
	"math"
	"sort"
)

// NoProgressLimit is the number of completed rounds without a capture or
// pawn move after which the game ends.
const NoProgressLimit = 50

// RepetitionLimit is the number of occurrences of a hash since the last
// resetting move that ends the game.
const RepetitionLimit = 3

// IsTerminal reports whether the game is over, caching the reason on the
// first positive check. Undo clears the cache.
func (p *Position) IsTerminal() bool {
	if p.termination != NotTerminated {
		return true
	}
	if p.numActive <= 1 {
		p.termination = Elimination
		return true
	}
	if p.moveNumber-p.lastReset >= NoProgressLimit && len(p.undo) > 0 {
		if p.undo[len(p.undo)-1].mover == p.lastActive() {
			p.termination = NoProgress
			return true
		}
	}
	count := 0
	for _, h := range p.history {
		if h == p.hash {
			count++
		}
	}
	if count >= RepetitionLimit {
		p.termination = Repetition
		return true
	}
	return false
}

// Termination returns the cached termination reason. It is NotTerminated
// until IsTerminal has observed a finished game.
func (p *Position) Termination() Termination { return p.termination }

// deadKings counts kings still on the board whose owner is eliminated.
func (p *Position) deadKings() int {
	n := 0
	for pl := Player(0); pl < NumPlayers; pl++ {
		if !p.active[pl] && p.pieces[pl][King] != 0 {
			n += p.pieces[pl][King].Count()
		}
	}
	return n
}

// Result returns the final per-player scores: capture points plus the
// end-of-game bonuses. Before termination it is just the capture points.
func (p *Position) Result() [NumPlayers]int {
	res := p.scores
	dead := p.deadKings()
	switch p.termination {
	case NoProgress, Repetition:
		if p.numActive == 0 {
			break
		}
		bonus := 0
		if dead > 0 {
			bonus = int(math.Ceil(3 * float64(dead) / float64(p.numActive)))
		}
		for pl := Player(0); pl < NumPlayers; pl++ {
			if p.active[pl] {
				res[pl] += 2 + bonus
			}
		}
	case Elimination:
		if p.numActive == 1 && dead > 0 {
			res[p.ActivePlayers()[0]] += 3 * dead
		}
	}
	return res
}

// Winner returns the player with the highest final score, ties going to
// the lowest index. It returns NoPlayer while the game is still running.
func (p *Position) Winner() Player {
	if p.termination == NotTerminated {
		return NoPlayer
	}
	res := p.Result()
	best := Red
	for pl := Blue; pl < NumPlayers; pl++ {
		if res[pl] > res[best] {
			best = pl
		}
	}
	return best
}

// rankRewards are the training rewards for first through fourth place.
var rankRewards = [NumPlayers]float64{1, 0.25, -0.25, -1}

// RankRewards converts final scores into per-player rewards by rank.
// Tied players share the average of the rewards for the ranks they span.
func RankRewards(scores [NumPlayers]int) [NumPlayers]float64 {
	order := []Player{Red, Blue, Yellow, Green}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	var out [NumPlayers]float64
	for i := 0; i < NumPlayers; {
		j := i
		sum := 0.0
		for j < NumPlayers && scores[order[j]] == scores[order[i]] {
			sum += rankRewards[j]
			j++
		}
		avg := sum / float64(j-i)
		for k := i; k < j; k++ {
			out[order[k]] = avg
		}
		i = j
	}
	return out
}
