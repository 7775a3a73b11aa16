package agent

import (
	"errors"
	"fmt"

	"skill-duel/server/engine"
)

// HandCard is a dealt card annotated for whoever has to pick one.
type HandCard struct {
	engine.SkillCard
	Affordable bool `json:"affordable"`
}

// Observation is everything the player side may see: its own hand, the
// public match state and whether it already committed this round. The
// opponent's hand and pick stay hidden.
type Observation struct {
	MatchID   string          `json:"match_id,omitempty"`
	Hand      []HandCard      `json:"hand"`
	Snapshot  engine.Snapshot `json:"snapshot"`
	Selected  *int            `json:"selected_card_id,omitempty"`
	CanSelect bool            `json:"can_select"`
	CanPass   bool            `json:"can_pass"`
}

var ErrCardIDRequired = errors.New("card_id is required")

// SelectionIn is the body of a player selection.
type SelectionIn struct {
	CardID *int `json:"card_id"`
}

// BuildObservation takes one consistent read of the match, so the hand and
// its affordability always belong to the snapshot beside them.
func BuildObservation(id string, m *engine.Match) Observation {
	st := m.State()
	var selected *int
	if st.PlayerPick != nil {
		pick := st.PlayerPick.ID
		selected = &pick
	}
	return Observe(id, st.Hands.Player, st.Snapshot, selected)
}

// Observe builds an observation from a hand already in hand, e.g. one handed
// over by a round-started callback.
func Observe(id string, hand []engine.SkillCard, snap engine.Snapshot, selected *int) Observation {
	out := Observation{
		MatchID:  id,
		Hand:     make([]HandCard, len(hand)),
		Snapshot: snap,
		Selected: selected,
	}
	anyAffordable := false
	for i, c := range hand {
		ok := c.MpCost <= snap.Player.Mp
		anyAffordable = anyAffordable || ok
		out.Hand[i] = HandCard{SkillCard: c, Affordable: ok}
	}
	open := snap.Phase == engine.AwaitingSelections && selected == nil
	out.CanSelect = open && anyAffordable
	out.CanPass = open && !anyAffordable && len(hand) > 0
	return out
}

// Validate checks the request shape against the observation before it reaches
// the match. The match re-checks everything under its own lock.
func Validate(o Observation, in SelectionIn) error {
	if in.CardID == nil {
		return ErrCardIDRequired
	}
	for _, c := range o.Hand {
		if c.ID == *in.CardID {
			return nil
		}
	}
	return fmt.Errorf("card %d: %w", *in.CardID, engine.ErrCardNotInHand)
}
