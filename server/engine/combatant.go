package engine

// Combatant holds bounded health and mana. Every mutation clamps to [0, max].
// Amounts are expected to be non-negative.
type Combatant struct {
	Name  string
	Side  Side
	MaxHp int
	Hp    int
	MaxMp int
	Mp    int
}

func NewCombatant(name string, side Side, maxHp, maxMp int) *Combatant {
	return &Combatant{Name: name, Side: side, MaxHp: maxHp, Hp: maxHp, MaxMp: maxMp, Mp: maxMp}
}

// ApplyDamage lowers hp (floored at 0) and returns the amount applied.
func (c *Combatant) ApplyDamage(amount int) int {
	c.Hp -= amount
	if c.Hp < 0 {
		c.Hp = 0
	}
	return amount
}

// SpendMp deducts amount iff the combatant can afford it. On failure mp is untouched.
func (c *Combatant) SpendMp(amount int) bool {
	if c.Mp < amount {
		return false
	}
	c.Mp -= amount
	return true
}

func (c *Combatant) Heal(amount int) {
	c.Hp += amount
	if c.Hp > c.MaxHp {
		c.Hp = c.MaxHp
	}
}

func (c *Combatant) RestoreMp(amount int) {
	c.Mp += amount
	if c.Mp > c.MaxMp {
		c.Mp = c.MaxMp
	}
}

func (c *Combatant) IsDead() bool { return c.Hp == 0 }

func (c *Combatant) CanAfford(card SkillCard) bool { return card.MpCost <= c.Mp }

func (c *Combatant) View() CombatantView {
	return CombatantView{Name: c.Name, Side: c.Side, Hp: c.Hp, MaxHp: c.MaxHp, Mp: c.Mp, MaxMp: c.MaxMp}
}
