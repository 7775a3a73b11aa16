package main

import "math"

// Glicko-2 works on the mu/phi scale; ratings are reported on the 1500 scale.
const (
	glickoScale    = 173.7178
	glickoBase     = 1500.0
	glickoEpsilon  = 1e-6
	glickoMaxSteps = 100
)

// Glicko2 rates one policy on the public 1500 scale.
type Glicko2 struct {
	Rating     float64
	RD         float64
	Volatility float64
	Games      int // rating periods applied
}

func NewGlicko2() *Glicko2 {
	return &Glicko2{Rating: glickoBase, RD: 350, Volatility: 0.06}
}

// Copy snapshots the rating so both sides of a pair update from the same
// start-of-period values.
func (p *Glicko2) Copy() *Glicko2 {
	cp := *p
	return &cp
}

func (p *Glicko2) mu() float64  { return (p.Rating - glickoBase) / glickoScale }
func (p *Glicko2) phi() float64 { return p.RD / glickoScale }

func (p *Glicko2) set(mu, phi float64) {
	p.Rating = mu*glickoScale + glickoBase
	p.RD = phi * glickoScale
}

func glickoG(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}

func glickoE(mu, muOpp, phiOpp float64) float64 {
	return 1 / (1 + math.Exp(-glickoG(phiOpp)*(mu-muOpp)))
}

// OpponentResult is the aggregate score S in [0,1] against one opponent over
// a rating period.
type OpponentResult struct {
	Opp *Glicko2
	S   float64
}

// Age applies an idle rating period: RD widens by the volatility and the
// rating stays put.
func (p *Glicko2) Age() {
	phi := math.Sqrt(p.phi()*p.phi() + p.Volatility*p.Volatility)
	p.set(p.mu(), phi)
	p.Games++
}

// UpdateBatch applies one rating period. Opponents must carry their
// start-of-period ratings. tau bounds how fast volatility moves.
func (p *Glicko2) UpdateBatch(results []OpponentResult, tau float64) {
	if len(results) == 0 {
		p.Age()
		return
	}
	mu, phi := p.mu(), p.phi()

	var info, gain float64
	for _, r := range results {
		gj := glickoG(r.Opp.phi())
		e := glickoE(mu, r.Opp.mu(), r.Opp.phi())
		info += gj * gj * e * (1 - e)
		gain += gj * (r.S - e)
	}
	v := 1 / info
	delta := v * gain

	sigma := p.newVolatility(phi, v, delta, tau)
	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	p.set(mu+phiNew*phiNew*gain, phiNew)
	p.Volatility = sigma
	p.Games++
}

// newVolatility finds sigma' with the Illinois variant of regula falsi.
func (p *Glicko2) newVolatility(phi, v, delta, tau float64) float64 {
	a := math.Log(p.Volatility * p.Volatility)
	d2, phi2 := delta*delta, phi*phi
	f := func(x float64) float64 {
		ex := math.Exp(x)
		den := phi2 + v + ex
		return ex*(d2-phi2-v-ex)/(2*den*den) - (x-a)/(tau*tau)
	}

	lo := a
	var hi float64
	if d2 > phi2+v {
		hi = math.Log(d2 - phi2 - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		hi = a - k*tau
	}

	fLo, fHi := f(lo), f(hi)
	for i := 0; i < glickoMaxSteps && math.Abs(hi-lo) > glickoEpsilon; i++ {
		c := lo + (lo-hi)*fLo/(fHi-fLo)
		fC := f(c)
		if fC*fHi <= 0 {
			lo, fLo = hi, fHi
		} else {
			fLo /= 2
		}
		hi, fHi = c, fC
	}
	return math.Exp(lo / 2)
}

// UpdatePair is UpdateBatch against a single opponent.
func (p *Glicko2) UpdatePair(opp *Glicko2, s, tau float64) {
	p.UpdateBatch([]OpponentResult{{Opp: opp, S: s}}, tau)
}

// ScoreFromWL returns S for a plain outcome: win 1, draw 0.5, loss 0.
func ScoreFromWL(win, draw bool) float64 {
	switch {
	case draw:
		return 0.5
	case win:
		return 1
	}
	return 0
}

// ScoreFromMargin maps an hp margin over span to S in [0,1] with a tanh
// curve; k sets the steepness. A non-positive span returns 0.5.
func ScoreFromMargin(hpMargin int, span, k float64) float64 {
	if span <= 0 {
		return 0.5
	}
	return 0.5 + 0.5*math.Tanh(k*float64(hpMargin)/span)
}
