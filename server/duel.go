package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"skill-duel/server/agent"
	"skill-duel/server/engine"
	"skill-duel/server/session"
)

var (
	boldText = color.New(color.Bold).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
	goodText = color.New(color.FgGreen).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
	badText  = color.New(color.FgRed).SprintFunc()
	cyanText = color.New(color.FgCyan).SprintFunc()
	magText  = color.New(color.FgMagenta).SprintFunc()
)

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s %s %s\n", dimText("──"), boldText(title), dimText("──"))
}

// meter renders a fixed-width bar such as "HP [██████····] 6/10".
func meter(label string, cur, max int, paint func(...any) string) string {
	const width = 10
	filled := 0
	if max > 0 {
		filled = cur * width / max
	}
	return fmt.Sprintf("%s [%s%s] %d/%d", label,
		paint(strings.Repeat("█", filled)), dimText(strings.Repeat("·", width-filled)), cur, max)
}

func renderStatus(w io.Writer, snap engine.Snapshot) {
	fmt.Fprintf(w, "%s  round %d  distance %d\n", boldText("Status"), snap.Round, snap.Distance)
	for _, c := range []engine.CombatantView{snap.Player, snap.Opponent} {
		fmt.Fprintf(w, "  %-8s %s  %s\n", c.Name, meter("HP", c.Hp, c.MaxHp, goodText), meter("MP", c.Mp, c.MaxMp, cyanText))
	}
}

func renderHand(w io.Writer, obs agent.Observation) {
	for i, c := range obs.Hand {
		line := fmt.Sprintf("  %d) %-10s dmg %d  rng %d  mov %+d  mp %d  %s",
			i+1, c.Name, c.Damage, c.Range, c.Movement, c.MpCost, dimText(c.Description))
		if !c.Affordable {
			line = dimText(line + "  (not enough mana)")
		}
		fmt.Fprintln(w, line)
	}
	switch {
	case obs.CanSelect:
		fmt.Fprintln(w, dimText("pick 1-"+strconv.Itoa(len(obs.Hand))+", r restart, q quit"))
	case obs.CanPass:
		fmt.Fprintln(w, warnText("nothing affordable: p to pass"), dimText("r restart, q quit"))
	}
}

func renderVerdict(w io.Writer, v engine.Verdict) {
	switch v {
	case engine.PlayerWins:
		fmt.Fprintln(w, goodText(boldText("You win!")))
	case engine.OpponentWins:
		fmt.Fprintln(w, badText(boldText("You lose.")))
	case engine.Draw:
		fmt.Fprintln(w, warnText(boldText("Draw.")))
	}
	fmt.Fprintln(w, dimText("r restart, q quit"))
}

// runDuel plays one session against the AI from a line-oriented terminal.
// The manager must run with an immediate scheduler so each command settles
// before the next prompt.
func runDuel(ctx context.Context, mgr *session.Manager, in io.Reader, out io.Writer) error {
	s, err := mgr.Create()
	if err != nil {
		return err
	}
	defer mgr.Delete(s.ID)

	s.Match.OnRoundResolved(func(evs []engine.Event, _ engine.Snapshot) {
		section(out, "RESOLUTION")
		for _, ev := range evs {
			line := ev.Message()
			switch ev.Kind {
			case engine.EventDamage:
				line = badText(line)
			case engine.EventHealed, engine.EventMpRestored, engine.EventDefended:
				line = goodText(line)
			case engine.EventUnaffordable, engine.EventOutOfRange:
				line = warnText(line)
			case engine.EventCardChosen:
				line = magText(line)
			}
			fmt.Fprintln(out, "  "+line)
		}
	})
	s.Match.OnMatchOver(func(v engine.Verdict) {
		section(out, "MATCH OVER")
		renderVerdict(out, v)
	})

	section(out, "DUEL")
	sc := bufio.NewScanner(in)
	prompt := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		obs := s.Observation()
		if prompt && obs.Snapshot.Phase != engine.MatchOver {
			section(out, fmt.Sprintf("ROUND %d", obs.Snapshot.Round))
			renderStatus(out, obs.Snapshot)
			renderHand(out, obs)
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		prompt = true
		switch cmd {
		case "q", "quit":
			return nil
		case "r", "restart":
			_, err = mgr.Restart(s.ID)
		case "p", "pass":
			_, err = mgr.Pass(s.ID)
		default:
			n, convErr := strconv.Atoi(cmd)
			if convErr != nil || n < 1 || n > len(obs.Hand) {
				fmt.Fprintln(out, warnText("unknown command "+strconv.Quote(cmd)))
				prompt = false
				continue
			}
			_, err = mgr.Select(s.ID, obs.Hand[n-1].ID)
		}
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return err
			}
			fmt.Fprintln(out, warnText("rejected: "+err.Error()))
			prompt = false
		}
	}
}
