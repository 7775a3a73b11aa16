package engine

// Resolution is the outcome of one resolution pass.
type Resolution struct {
	Distance int
	Events   []Event
}

type sideAction struct {
	self    *Combatant
	card    SkillCard
	paid    bool
	outcome Event
}

func (a *sideAction) defending() bool { return a.paid && a.card.Effect == Defend }

type roundContext struct {
	rules    Rules
	distance int
	player   sideAction
	opponent sideAction
}

// Resolve applies both selected cards simultaneously.
//
// Order: mana gate for each side, movement (player closes, opponent adds, then
// clamp at 0), self effects (Heal, RestoreMp), attacks. Both attacks use the same
// post-movement distance and the defend flags fixed before any damage lands, so
// the result does not depend on which side is evaluated first.
//
// Events come out as: both selections (player, opponent), then the player's
// outcome, then the opponent's.
func Resolve(rules Rules, player, opponent *Combatant, playerCard, opponentCard SkillCard, distance int) Resolution {
	rc := &roundContext{
		rules:    rules,
		distance: distance,
		player:   sideAction{self: player, card: playerCard},
		opponent: sideAction{self: opponent, card: opponentCard},
	}

	rc.player.paid = player.SpendMp(playerCard.MpCost)
	rc.opponent.paid = opponent.SpendMp(opponentCard.MpCost)

	rc.move()

	rc.applySelfEffect(&rc.player)
	rc.applySelfEffect(&rc.opponent)

	rc.attack(&rc.player, &rc.opponent)
	rc.attack(&rc.opponent, &rc.player)

	return Resolution{
		Distance: rc.distance,
		Events: []Event{
			chosen(&rc.player),
			chosen(&rc.opponent),
			rc.player.outcome,
			rc.opponent.outcome,
		},
	}
}

func chosen(a *sideAction) Event {
	return Event{Kind: EventCardChosen, Side: a.self.Side, Actor: a.self.Name, Card: a.card}
}

func (rc *roundContext) move() {
	d := rc.distance
	if rc.player.paid {
		d -= rc.player.card.Movement
	}
	if rc.opponent.paid {
		d += rc.opponent.card.Movement
	}
	if d < 0 {
		d = 0
	}
	rc.distance = d
}

func (rc *roundContext) applySelfEffect(a *sideAction) {
	ev := Event{Side: a.self.Side, Actor: a.self.Name, Card: a.card}
	if !a.paid {
		ev.Kind = EventUnaffordable
		a.outcome = ev
		return
	}
	switch a.card.Effect {
	case Heal:
		a.self.Heal(rc.rules.HealAmount)
		ev.Kind = EventHealed
		ev.Amount = rc.rules.HealAmount
		a.outcome = ev
	case RestoreMp:
		a.self.RestoreMp(rc.rules.RestoreMpAmount)
		ev.Kind = EventMpRestored
		ev.Amount = rc.rules.RestoreMpAmount
		a.outcome = ev
	}
}

// attack runs for paid cards without a self effect; Defend and Normal both qualify.
func (rc *roundContext) attack(a, target *sideAction) {
	if !a.paid || a.card.Effect == Heal || a.card.Effect == RestoreMp {
		return
	}
	ev := Event{Side: a.self.Side, Actor: a.self.Name, Target: target.self.Name, Card: a.card}
	switch {
	case rc.distance > a.card.Range:
		ev.Kind = EventOutOfRange
	case target.defending() && a.card.Damage < rc.rules.BlockThreshold:
		ev.Kind = EventDefended
	default:
		ev.Kind = EventDamage
		ev.Amount = target.self.ApplyDamage(a.card.Damage)
	}
	a.outcome = ev
}
