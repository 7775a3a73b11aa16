package engine

// Evaluate reports whether the match is over and, if so, who won.
func Evaluate(player, opponent *Combatant) (Verdict, bool) {
	switch pd, od := player.IsDead(), opponent.IsDead(); {
	case pd && od:
		return Draw, true
	case pd:
		return OpponentWins, true
	case od:
		return PlayerWins, true
	}
	return NoVerdict, false
}
