package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Rand is the slice of *rand.Rand the engine draws from.
type Rand interface {
	Intn(n int) int
}

// SkillCard is an immutable action definition. Movement is signed:
// positive closes distance, negative opens it.
type SkillCard struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Damage      int    `json:"damage"`
	Range       int    `json:"range"`
	Movement    int    `json:"movement"`
	MpCost      int    `json:"mp_cost"`
	Effect      Effect `json:"effect"`
	Description string `json:"description"`
}

func (c SkillCard) String() string {
	return fmt.Sprintf("%s(dmg=%d rng=%d mov=%+d mp=%d)", c.Name, c.Damage, c.Range, c.Movement, c.MpCost)
}

var ErrCatalogExhausted = errors.New("catalog cannot supply two disjoint hands")

var catalog = [...]SkillCard{
	{ID: 1, Name: "Charge", Damage: 2, Range: 2, Movement: 2, MpCost: 2, Effect: Normal, Description: "Move in and strike"},
	{ID: 2, Name: "Defend", Damage: 0, Range: 0, Movement: 0, MpCost: 1, Effect: Defend, Description: "Block attacks dealing less than 2 damage"},
	{ID: 3, Name: "Slash", Damage: 3, Range: 2, Movement: 0, MpCost: 2, Effect: Normal, Description: "Heavy melee blow"},
	{ID: 4, Name: "Magic Orb", Damage: 1, Range: 10, Movement: 0, MpCost: 1, Effect: Normal, Description: "Long range magic attack"},
	{ID: 5, Name: "Heal", Damage: 0, Range: 0, Movement: 0, MpCost: 3, Effect: Heal, Description: "Recover 5 health"},
	{ID: 6, Name: "Evade", Damage: 0, Range: 0, Movement: -1, MpCost: 1, Effect: Normal, Description: "Step back out of reach"},
	{ID: 7, Name: "Focus", Damage: 0, Range: 0, Movement: 0, MpCost: 0, Effect: RestoreMp, Description: "Recover 2 mana"},
	{ID: 8, Name: "Arrow", Damage: 2, Range: 8, Movement: 0, MpCost: 2, Effect: Normal, Description: "Long range bow shot"},
	{ID: 9, Name: "Smash", Damage: 4, Range: 1, Movement: 0, MpCost: 3, Effect: Normal, Description: "Close range crushing hit"},
	{ID: 10, Name: "Rush", Damage: 1, Range: 1, Movement: 3, MpCost: 2, Effect: Normal, Description: "Dash forward and jab"},
}

// Catalog returns a copy of the fixed card pool in id order.
func Catalog() []SkillCard {
	out := make([]SkillCard, len(catalog))
	copy(out, catalog[:])
	return out
}

func CardByID(id int) (SkillCard, bool) {
	for _, c := range catalog {
		if c.ID == id {
			return c, true
		}
	}
	return SkillCard{}, false
}

// NewRand returns a seeded source; seed 0 picks one from the clock.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Deal shuffles the full pool and slices two disjoint hands of handSize.
func Deal(r Rand, handSize int) (Hands, error) {
	return dealFrom(Catalog(), r, handSize)
}

func dealFrom(pool []SkillCard, r Rand, handSize int) (Hands, error) {
	if handSize <= 0 || len(pool) < 2*handSize {
		return Hands{}, fmt.Errorf("deal %d+%d from %d cards: %w", handSize, handSize, len(pool), ErrCatalogExhausted)
	}
	deck := append([]SkillCard(nil), pool...)
	for i := len(deck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return Hands{
		Player:   deck[:handSize:handSize],
		Opponent: deck[handSize : 2*handSize : 2*handSize],
	}, nil
}

func handContains(hand []SkillCard, id int) (SkillCard, bool) {
	for _, c := range hand {
		if c.ID == id {
			return c, true
		}
	}
	return SkillCard{}, false
}
