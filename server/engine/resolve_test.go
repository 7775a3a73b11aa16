package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(t *testing.T, name string) SkillCard {
	t.Helper()
	for _, c := range Catalog() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no card named %q", name)
	return SkillCard{}
}

func duelists() (*Combatant, *Combatant) {
	r := DefaultRules()
	return NewCombatant(r.PlayerName, Player, r.MaxHp, r.MaxMp), NewCombatant(r.OpponentName, Opponent, r.MaxHp, r.MaxMp)
}

func outcomes(res Resolution) (Event, Event) {
	return res.Events[2], res.Events[3]
}

func TestResolve_HeavyHitIsNotBlockedByDefend(t *testing.T) {
	p, o := duelists()
	res := Resolve(DefaultRules(), p, o, card(t, "Slash"), card(t, "Defend"), 2)

	pOut, _ := outcomes(res)
	assert.Equal(t, EventDamage, pOut.Kind)
	assert.Equal(t, 3, pOut.Amount)
	assert.Equal(t, 7, o.Hp)
	for _, ev := range res.Events {
		assert.NotEqual(t, EventDefended, ev.Kind)
	}
	assert.Equal(t, 8, p.Mp)
	assert.Equal(t, 9, o.Mp)
}

func TestResolve_UnaffordableHealDoesNothing(t *testing.T) {
	p, o := duelists()
	p.Mp = 2
	p.Hp = 6
	res := Resolve(DefaultRules(), p, o, card(t, "Heal"), card(t, "Magic Orb"), 4)

	pOut, oOut := outcomes(res)
	assert.Equal(t, EventUnaffordable, pOut.Kind)
	assert.Equal(t, 2, p.Mp)
	assert.Equal(t, 4, res.Distance)

	// the opponent still acts normally
	assert.Equal(t, EventDamage, oOut.Kind)
	assert.Equal(t, 1, oOut.Amount)
	assert.Equal(t, 5, p.Hp)
}

func TestResolve_OutOfRangeMisses(t *testing.T) {
	p, o := duelists()
	res := Resolve(DefaultRules(), p, o, card(t, "Slash"), card(t, "Focus"), 5)

	pOut, _ := outcomes(res)
	assert.Equal(t, EventOutOfRange, pOut.Kind)
	assert.Equal(t, 10, o.Hp)
}

func TestResolve_DefendBlocksOnlyBelowThreshold(t *testing.T) {
	tests := []struct {
		name       string
		attack     string
		defenderMp int
		wantKind   EventKind
		wantHp     int
	}{
		{name: "one damage blocked", attack: "Magic Orb", defenderMp: 10, wantKind: EventDefended, wantHp: 10},
		{name: "threshold damage lands", attack: "Arrow", defenderMp: 10, wantKind: EventDamage, wantHp: 8},
		{name: "heavy damage lands", attack: "Slash", defenderMp: 10, wantKind: EventDamage, wantHp: 7},
		{name: "unpaid defend does not block", attack: "Magic Orb", defenderMp: 0, wantKind: EventDamage, wantHp: 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, o := duelists()
			o.Mp = tt.defenderMp
			res := Resolve(DefaultRules(), p, o, card(t, tt.attack), card(t, "Defend"), 2)
			pOut, _ := outcomes(res)
			assert.Equal(t, tt.wantKind, pOut.Kind)
			assert.Equal(t, tt.wantHp, o.Hp)
		})
	}
}

func TestResolve_Movement(t *testing.T) {
	tests := []struct {
		name     string
		player   string
		opponent string
		playerMp int
		distance int
		want     int
	}{
		{name: "player closes", player: "Charge", opponent: "Focus", playerMp: 10, distance: 5, want: 3},
		{name: "opponent movement adds", player: "Charge", opponent: "Rush", playerMp: 10, distance: 5, want: 6},
		{name: "player retreats", player: "Evade", opponent: "Focus", playerMp: 10, distance: 2, want: 3},
		{name: "clamped at zero", player: "Rush", opponent: "Focus", playerMp: 10, distance: 1, want: 0},
		{name: "unpaid card does not move", player: "Rush", opponent: "Focus", playerMp: 1, distance: 5, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, o := duelists()
			p.Mp = tt.playerMp
			res := Resolve(DefaultRules(), p, o, card(t, tt.player), card(t, tt.opponent), tt.distance)
			assert.Equal(t, tt.want, res.Distance)
		})
	}
}

func TestResolve_AttackUsesPostMovementDistance(t *testing.T) {
	p, o := duelists()
	// Charge closes 5 -> 3; range 2 still misses.
	res := Resolve(DefaultRules(), p, o, card(t, "Charge"), card(t, "Focus"), 5)
	pOut, _ := outcomes(res)
	assert.Equal(t, EventOutOfRange, pOut.Kind)

	p, o = duelists()
	// Rush closes 3 -> 0; range 1 lands.
	res = Resolve(DefaultRules(), p, o, card(t, "Rush"), card(t, "Focus"), 3)
	pOut, _ = outcomes(res)
	assert.Equal(t, EventDamage, pOut.Kind)
	assert.Equal(t, 9, o.Hp)
}

func TestResolve_SelfEffectsApplyBeforeAttacks(t *testing.T) {
	p, o := duelists()
	o.Hp = 6
	res := Resolve(DefaultRules(), p, o, card(t, "Slash"), card(t, "Heal"), 2)

	pOut, oOut := outcomes(res)
	assert.Equal(t, EventDamage, pOut.Kind)
	assert.Equal(t, EventHealed, oOut.Kind)
	assert.Equal(t, 5, oOut.Amount)
	assert.Equal(t, 7, o.Hp) // 6 -> 10 (capped) -> 7
}

func TestResolve_RestoreMp(t *testing.T) {
	p, o := duelists()
	p.Mp = 4
	res := Resolve(DefaultRules(), p, o, card(t, "Focus"), card(t, "Defend"), 5)
	pOut, _ := outcomes(res)
	assert.Equal(t, EventMpRestored, pOut.Kind)
	assert.Equal(t, 6, p.Mp)
}

func TestResolve_SimultaneousKnockoutIsDraw(t *testing.T) {
	p, o := duelists()
	p.Hp, o.Hp = 2, 2
	Resolve(DefaultRules(), p, o, card(t, "Smash"), card(t, "Smash"), 1)

	verdict, over := Evaluate(p, o)
	assert.True(t, over)
	assert.Equal(t, Draw, verdict)
}

func TestResolve_EventOrder(t *testing.T) {
	p, o := duelists()
	res := Resolve(DefaultRules(), p, o, card(t, "Arrow"), card(t, "Magic Orb"), 5)
	require.Len(t, res.Events, 4)

	assert.Equal(t, EventCardChosen, res.Events[0].Kind)
	assert.Equal(t, Player, res.Events[0].Side)
	assert.Equal(t, EventCardChosen, res.Events[1].Kind)
	assert.Equal(t, Opponent, res.Events[1].Side)
	assert.Equal(t, Player, res.Events[2].Side)
	assert.Equal(t, Opponent, res.Events[3].Side)
	assert.Equal(t, "Player dealt 2 damage to AI", res.Events[2].Message())
}

func TestResolve_OutcomeIsSymmetric(t *testing.T) {
	cards := Catalog()
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		a, b := cards[r.Intn(len(cards))], cards[r.Intn(len(cards))]
		d := r.Intn(8)
		hpA, hpB, mpA, mpB := 1+r.Intn(10), 1+r.Intn(10), r.Intn(11), r.Intn(11)

		p1, o1 := duelists()
		p1.Hp, o1.Hp, p1.Mp, o1.Mp = hpA, hpB, mpA, mpB
		Resolve(DefaultRules(), p1, o1, a, b, d)

		// Same fight with the seats swapped. Movement signs differ per seat, so
		// only compare when neither card moves.
		if a.Movement != 0 || b.Movement != 0 {
			continue
		}
		p2, o2 := duelists()
		p2.Hp, o2.Hp, p2.Mp, o2.Mp = hpB, hpA, mpB, mpA
		Resolve(DefaultRules(), p2, o2, b, a, d)

		assert.Equal(t, p1.Hp, o2.Hp, "iteration %d", i)
		assert.Equal(t, o1.Hp, p2.Hp, "iteration %d", i)
		assert.Equal(t, p1.Mp, o2.Mp, "iteration %d", i)
	}
}

func TestResolve_DistanceNeverNegative(t *testing.T) {
	cards := Catalog()
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		p, o := duelists()
		p.Mp, o.Mp = r.Intn(11), r.Intn(11)
		res := Resolve(DefaultRules(), p, o, cards[r.Intn(len(cards))], cards[r.Intn(len(cards))], r.Intn(4))
		require.GreaterOrEqual(t, res.Distance, 0)
	}
}
