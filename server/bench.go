package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"skill-duel/server/engine"
)

type benchConfig struct {
	Rules     engine.Rules
	PolicyA   string
	PolicyB   string
	Pairs     int
	Workers   int
	MaxRounds int
	BaseSeed  uint64
}

// benchGame is one finished (or capped) AI-vs-AI match.
type benchGame struct {
	final  engine.Snapshot
	capped bool
	cards  map[engine.Side][]string
}

// winner is the winning seat, or "" for a draw or a capped game.
func (g benchGame) winner() engine.Side {
	switch g.final.Verdict {
	case engine.PlayerWins:
		return engine.Player
	case engine.OpponentWins:
		return engine.Opponent
	}
	return ""
}

// benchPair plays the same deal twice with the seats swapped.
type benchPair struct {
	ab benchGame // A seated as player
	ba benchGame // B seated as player
}

// hpMarginA is A's remaining hp minus B's, summed over both seatings.
func (p benchPair) hpMarginA() int {
	return (p.ab.final.Player.Hp - p.ab.final.Opponent.Hp) + (p.ba.final.Opponent.Hp - p.ba.final.Player.Hp)
}

// playBenchGame drives the player seat through the public selection API.
func playBenchGame(rules engine.Rules, deckSeed int64, player, opponent engine.Policy, maxRounds int) (benchGame, error) {
	m, err := engine.NewMatch(engine.Config{Rules: rules, Rand: engine.NewRand(deckSeed), Policy: opponent})
	if err != nil {
		return benchGame{}, err
	}
	game := benchGame{cards: map[engine.Side][]string{}}
	m.OnRoundResolved(func(evs []engine.Event, _ engine.Snapshot) {
		for _, ev := range evs {
			if ev.Kind == engine.EventCardChosen {
				game.cards[ev.Side] = append(game.cards[ev.Side], ev.Card.Name)
			}
		}
	})

	for {
		snap := m.Snapshot()
		if snap.Phase == engine.MatchOver {
			break
		}
		if snap.Round > maxRounds {
			game.capped = true
			break
		}
		pick := player.Choose(m.Hands().Player, snap.Player.Mp)
		if pick.MpCost <= snap.Player.Mp {
			err = m.SelectPlayerCard(pick.ID)
		} else {
			err = m.Pass()
		}
		if err != nil {
			return benchGame{}, fmt.Errorf("round %d: %w", snap.Round, err)
		}
	}
	game.final = m.Snapshot()
	if game.capped {
		game.final.Round = maxRounds
	}
	return game, nil
}

func playPair(cfg benchConfig, seed int64) (benchPair, error) {
	ss := engine.NewSeedStream(uint64(seed))
	deck, seedA, seedB := ss.Next(), ss.Next(), ss.Next()
	policy := func(name string, s int64) engine.Policy {
		p, _ := engine.PolicyByName(name, engine.NewRand(s))
		return p
	}

	ab, err := playBenchGame(cfg.Rules, deck, policy(cfg.PolicyA, seedA), policy(cfg.PolicyB, seedB), cfg.MaxRounds)
	if err != nil {
		return benchPair{}, err
	}
	ba, err := playBenchGame(cfg.Rules, deck, policy(cfg.PolicyB, seedB), policy(cfg.PolicyA, seedA), cfg.MaxRounds)
	if err != nil {
		return benchPair{}, err
	}
	return benchPair{ab: ab, ba: ba}, nil
}

type benchReport struct {
	Pairs      int
	StatsA     *PolicyStats
	StatsB     *PolicyStats
	Elo        Elo // one update per mirrored pair, scored by hp margin
	GameElo    Elo // one update per game, scored win/draw/loss
	GlickoA    *Glicko2
	GlickoB    *Glicko2
	PairWinsA  int
	PairDraws  int
	WinLo      float64 // A game win rate, Wilson 95%
	WinHi      float64
	PairLo     float64 // A pair win rate, Wilson 95%
	PairHi     float64
	MeanRounds float64
	RoundsLo   float64 // bootstrap 95%
	RoundsHi   float64
	MarginLo   float64 // A hp margin per pair, bootstrap 95%
	MarginHi   float64
}

// runBench plays cfg.Pairs mirrored pairs on a bounded worker group and folds
// the results in seed order, so a base seed reproduces the whole report.
func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	for _, name := range []string{cfg.PolicyA, cfg.PolicyB} {
		if _, ok := engine.PolicyByName(name, nil); !ok {
			return benchReport{}, fmt.Errorf("unknown policy %q", name)
		}
	}
	if err := cfg.Rules.Validate(); err != nil {
		return benchReport{}, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	seeds := engine.NewSeedStream(cfg.BaseSeed)
	pairSeeds := make([]int64, cfg.Pairs)
	for i := range pairSeeds {
		pairSeeds[i] = seeds.Next()
	}

	pairs := make([]benchPair, cfg.Pairs)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for i, seed := range pairSeeds {
		i, seed := i, seed
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := playPair(cfg, seed)
			if err != nil {
				return fmt.Errorf("pair %d: %w", i, err)
			}
			pairs[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return benchReport{}, err
	}
	return foldPairs(cfg, pairs), nil
}

func foldPairs(cfg benchConfig, pairs []benchPair) benchReport {
	rep := benchReport{
		Pairs:   len(pairs),
		StatsA:  newPolicyStats(),
		StatsB:  newPolicyStats(),
		Elo:     NewElo(1500, 24),
		GameElo: NewElo(1500, 16),
		GlickoA: NewGlicko2(),
		GlickoB: NewGlicko2(),
	}
	const tau = 0.5
	var rounds, margins []float64
	for _, p := range pairs {
		rep.StatsA.addGame(engine.Player, p.ab)
		rep.StatsB.addGame(engine.Opponent, p.ab)
		rep.StatsA.addGame(engine.Opponent, p.ba)
		rep.StatsB.addGame(engine.Player, p.ba)
		rounds = append(rounds, float64(p.ab.final.Round), float64(p.ba.final.Round))
		for _, g := range []struct {
			game benchGame
			seat engine.Side
		}{{p.ab, engine.Player}, {p.ba, engine.Opponent}} {
			w := g.game.winner()
			sA := ScoreFromWL(w == g.seat, w == "")
			rep.GameElo.UpdateGame(sA, 1-sA)
		}

		margin := p.hpMarginA()
		margins = append(margins, float64(margin))
		switch {
		case margin > 0:
			rep.PairWinsA++
		case margin == 0:
			rep.PairDraws++
		}

		rep.Elo.UpdateFromMirror(margin, cfg.Rules.MaxHp)
		sA := ScoreFromMargin(margin, float64(2*cfg.Rules.MaxHp), 1.5)
		a0, b0 := rep.GlickoA.Copy(), rep.GlickoB.Copy()
		rep.GlickoA.UpdatePair(b0, sA, tau)
		rep.GlickoB.UpdatePair(a0, 1-sA, tau)
	}

	o := rep.StatsA.Overall
	rep.WinLo, rep.WinHi = WilsonCI95(o.Wins, o.Draws, o.Games)
	rep.PairLo, rep.PairHi = WilsonCI95(rep.PairWinsA, rep.PairDraws, rep.Pairs)

	r := rand.New(rand.NewSource(int64(cfg.BaseSeed)))
	total := 0.0
	for _, v := range rounds {
		total += v
	}
	if len(rounds) > 0 {
		rep.MeanRounds = total / float64(len(rounds))
	}
	rep.RoundsLo, rep.RoundsHi = BootstrapCI95(rounds, 1000, r)
	rep.MarginLo, rep.MarginHi = BootstrapCI95(margins, 1000, r)
	return rep
}

func printBench(w io.Writer, cfg benchConfig, rep benchReport) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	good := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "\n%s %s %s\n", dim("──"), bold("BENCH"), dim("──"))
	fmt.Fprintf(w, "%s=%s vs %s=%s | pairs=%d games=%d seed=%d cap=%d\n",
		bold("A"), cfg.PolicyA, bold("B"), cfg.PolicyB, rep.Pairs, 2*rep.Pairs, cfg.BaseSeed, cfg.MaxRounds)

	for _, row := range []struct {
		label string
		st    *PolicyStats
	}{{"A", rep.StatsA}, {"B", rep.StatsB}} {
		o := row.st.Overall
		fmt.Fprintf(w, "%s games:%d %s %s draws:%d capped:%d | as player %d/%d | as opponent %d/%d\n",
			bold("Stats "+row.label+" →"), o.Games,
			good(fmt.Sprintf("wins:%d", o.Wins)), bad(fmt.Sprintf("losses:%d", o.Losses)),
			o.Draws, o.Capped,
			row.st.Player.Wins, row.st.Player.Games, row.st.Opponent.Wins, row.st.Opponent.Games)
		for _, seat := range []struct {
			label string
			st    *SeatStats
		}{{"player", &row.st.Player}, {"opponent", &row.st.Opponent}} {
			fmt.Fprintf(w, "  %s rounds:%.2f hp left:%.2f mp left:%.2f\n",
				dim(row.label+" as "+seat.label+" →"), seat.st.MeanRounds(), seat.st.MeanHpLeft(), seat.st.MeanMpLeft())
		}
	}

	fmt.Fprintf(w, "%s %.3f  (95%% CI %.3f–%.3f)\n", bold("A game win rate →"), rep.StatsA.Overall.WinRate(), rep.WinLo, rep.WinHi)
	fmt.Fprintf(w, "%s %d/%d draws:%d  (95%% CI %.3f–%.3f)\n", bold("A pair wins →"), rep.PairWinsA, rep.Pairs, rep.PairDraws, rep.PairLo, rep.PairHi)
	fmt.Fprintf(w, "%s %.2f  (95%% CI %.2f–%.2f)\n", bold("Mean rounds →"), rep.MeanRounds, rep.RoundsLo, rep.RoundsHi)
	fmt.Fprintf(w, "%s 95%% CI %.2f–%.2f\n", bold("A hp margin/pair →"), rep.MarginLo, rep.MarginHi)
	fmt.Fprintf(w, "%s A=%.1f B=%.1f\n", bold("Elo final →"), rep.Elo.A, rep.Elo.B)
	fmt.Fprintf(w, "%s A=%.1f B=%.1f\n", bold("Elo per game →"), rep.GameElo.A, rep.GameElo.B)
	fmt.Fprintf(w, "%s A=%.1f±%.1f B=%.1f±%.1f\n", bold("Glicko2 final →"),
		rep.GlickoA.Rating, rep.GlickoA.RD, rep.GlickoB.Rating, rep.GlickoB.RD)

	printCardTally(w, "A", rep.StatsA.Cards)
	printCardTally(w, "B", rep.StatsB.Cards)
}

func printCardTally(w io.Writer, label string, cards map[string]int) {
	names := make([]string, 0, len(cards))
	for n := range cards {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if cards[names[i]] != cards[names[j]] {
			return cards[names[i]] > cards[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Fprintf(w, "%s cards:", label)
	for _, n := range names {
		fmt.Fprintf(w, " %s=%d", n, cards[n])
	}
	fmt.Fprintln(w)
}
