package main

import (
	"math"
	"math/rand"
	"sort"

	"skill-duel/server/engine"
)

type SeatStats struct {
	Games  int
	Wins   int
	Draws  int
	Losses int
	Capped int // games stopped at the round cap
	Rounds int
	HpLeft int
	MpLeft int
}

func (s *SeatStats) WinRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games)
}

func (s *SeatStats) perGame(total int) float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(total) / float64(s.Games)
}

func (s *SeatStats) MeanRounds() float64 { return s.perGame(s.Rounds) }
func (s *SeatStats) MeanHpLeft() float64 { return s.perGame(s.HpLeft) }
func (s *SeatStats) MeanMpLeft() float64 { return s.perGame(s.MpLeft) }

// PolicyStats splits a policy's record by the seat it played.
type PolicyStats struct {
	Overall  SeatStats
	Player   SeatStats
	Opponent SeatStats
	Cards    map[string]int // chosen-card tally
}

func newPolicyStats() *PolicyStats { return &PolicyStats{Cards: map[string]int{}} }

func (m *PolicyStats) seatBucket(side engine.Side) *SeatStats {
	if side == engine.Player {
		return &m.Player
	}
	return &m.Opponent
}

// addGame folds one game into both the overall and the per-seat record.
func (m *PolicyStats) addGame(side engine.Side, game benchGame) {
	own := game.final.Player
	if side == engine.Opponent {
		own = game.final.Opponent
	}
	for _, s := range []*SeatStats{&m.Overall, m.seatBucket(side)} {
		s.Games++
		s.Rounds += game.final.Round
		s.HpLeft += own.Hp
		s.MpLeft += own.Mp
		if game.capped {
			s.Capped++
		}
		switch {
		case game.winner() == side:
			s.Wins++
		case game.winner() == side.Other():
			s.Losses++
		default:
			s.Draws++
		}
	}
	for _, name := range game.cards[side] {
		m.Cards[name]++
	}
}

// WilsonCI95 for a Bernoulli win rate, counting draws as half a win.
func WilsonCI95(wins, draws, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(draws)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 for the mean of vals (rounds per game, hp margins).
func BootstrapCI95(vals []float64, B int, r *rand.Rand) (low, hi float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[r.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
