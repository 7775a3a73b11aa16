package engine

// Policy picks a card for a side given its dealt hand and current mana.
type Policy interface {
	Choose(hand []SkillCard, mp int) SkillCard
}

// RandomPolicy picks uniformly among affordable cards. With nothing
// affordable it returns the first dealt card, which then fails the mana gate.
type RandomPolicy struct {
	Rand Rand
}

func (p RandomPolicy) Choose(hand []SkillCard, mp int) SkillCard {
	usable := Affordable(hand, mp)
	if len(usable) == 0 {
		return hand[0]
	}
	return usable[p.Rand.Intn(len(usable))]
}

// Affordable filters hand to cards whose cost fits mp, keeping deal order.
func Affordable(hand []SkillCard, mp int) []SkillCard {
	out := make([]SkillCard, 0, len(hand))
	for _, c := range hand {
		if c.MpCost <= mp {
			out = append(out, c)
		}
	}
	return out
}

// GreedyPolicy plays the hardest-hitting affordable card, cheaper first on
// ties. With no attack affordable it falls back like RandomPolicy.
type GreedyPolicy struct {
	Rand Rand
}

func (p GreedyPolicy) Choose(hand []SkillCard, mp int) SkillCard {
	usable := Affordable(hand, mp)
	if len(usable) == 0 {
		return hand[0]
	}
	best := usable[0]
	for _, c := range usable[1:] {
		if c.Damage > best.Damage || (c.Damage == best.Damage && c.MpCost < best.MpCost) {
			best = c
		}
	}
	if best.Damage == 0 {
		return usable[p.Rand.Intn(len(usable))]
	}
	return best
}

// PolicyByName resolves the policy names accepted on the command line.
func PolicyByName(name string, r Rand) (Policy, bool) {
	switch name {
	case "random":
		return RandomPolicy{Rand: r}, true
	case "greedy":
		return GreedyPolicy{Rand: r}, true
	}
	return nil, false
}
