package engine

import "fmt"

type EventKind string

const (
	EventCardChosen   EventKind = "card_chosen"
	EventUnaffordable EventKind = "unaffordable"
	EventHealed       EventKind = "healed"
	EventMpRestored   EventKind = "mp_restored"
	EventDamage       EventKind = "damage"
	EventDefended     EventKind = "defended"
	EventOutOfRange   EventKind = "out_of_range"
)

// Event is one entry of a resolution pass, in emission order.
type Event struct {
	Kind   EventKind `json:"kind"`
	Side   Side      `json:"side"`
	Actor  string    `json:"actor"`
	Target string    `json:"target,omitempty"`
	Card   SkillCard `json:"card"`
	Amount int       `json:"amount,omitempty"`
}

// Message renders the battle-log line for the event.
func (e Event) Message() string {
	switch e.Kind {
	case EventCardChosen:
		return fmt.Sprintf("%s chose [%s]", e.Actor, e.Card.Name)
	case EventUnaffordable:
		return fmt.Sprintf("%s lacks the mana for [%s]", e.Actor, e.Card.Name)
	case EventHealed:
		return fmt.Sprintf("%s recovered %d health", e.Actor, e.Amount)
	case EventMpRestored:
		return fmt.Sprintf("%s recovered %d mana", e.Actor, e.Amount)
	case EventDamage:
		return fmt.Sprintf("%s dealt %d damage to %s", e.Actor, e.Amount, e.Target)
	case EventDefended:
		return fmt.Sprintf("%s defended against the attack!", e.Target)
	case EventOutOfRange:
		return fmt.Sprintf("%s's attack missed: out of range", e.Actor)
	}
	return string(e.Kind)
}
