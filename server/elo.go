package main

import "math"

// Elo holds ratings for policy A and B across mirrored pairs.
type Elo struct {
	A, B  float64 // ratings
	K     float64 // base K
	Games int     // mirrored pairs processed
}

func NewElo(start, k float64) Elo { return Elo{A: start, B: start, K: k} }

func (e Elo) expect() (ea, eb float64) {
	ea = 1.0 / (1.0 + math.Pow(10, (e.B-e.A)/400.0))
	return ea, 1.0 - ea
}

// UpdateFromMirror scores one mirrored pair → returns applied deltas (dA, dB).
// hpMarginA = A's remaining hp minus B's, summed over both seatings;
// maxHp normalises the margin.
func (e *Elo) UpdateFromMirror(hpMarginA, maxHp int) (dA, dB float64) {
	ea, eb := e.expect()

	sA := ScoreFromMargin(hpMarginA, float64(2*maxHp), 1.5)
	sB := 1.0 - sA

	kEff := e.K * marginScale(hpMarginA, maxHp) * decay(e.Games)

	dA = kEff * (sA - ea)
	dB = kEff * (sB - eb)

	e.A += dA
	e.B += dB
	e.Games++

	return dA, dB
}

// UpdateGame applies a single game's scores (1 win, 0.5 draw, 0 loss).
func (e *Elo) UpdateGame(sa, sb float64) (dA, dB float64) {
	ea, eb := e.expect()
	dA = e.K * (sa - ea)
	dB = e.K * (sb - eb)
	e.A += dA
	e.B += dB
	return dA, dB
}

func marginScale(hpMargin, maxHp int) float64 {
	if maxHp <= 0 {
		return 1.0
	}
	m := math.Abs(float64(hpMargin)) / float64(maxHp)
	return 1.0 + 0.35*math.Tanh(m) // ≤ ~1.35
}

func decay(games int) float64 {
	return 1.0 / (1.0 + 0.01*float64(games)) // slow anneal over pairs
}
