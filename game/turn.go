package game

// TurnManager sequences seats round-robin and counts rounds up to a limit.
type TurnManager struct {
	round int
	index int
	limit int
	over  bool
	seq   int
}

func newTurnManager(limit int) *TurnManager {
	return &TurnManager{limit: limit}
}

func (t *TurnManager) Round() int { return t.round }
func (t *TurnManager) Index() int { return t.index }
func (t *TurnManager) Limit() int { return t.limit }
func (t *TurnManager) Over() bool { return t.over }

// Seq increases by one on every turn change; entities use it to allow one use per turn.
func (t *TurnManager) Seq() int { return t.seq }

// next moves to the following seat among n players. Wrapping to seat 0 starts a new
// round; reaching the round limit ends the game instead.
func (t *TurnManager) next(n int) (wrapped bool) {
	if t.over || n == 0 {
		t.over = true
		return false
	}
	t.seq++
	t.index++
	if t.index >= n {
		t.index = 0
		wrapped = true
		t.round++
		if t.round >= t.limit {
			t.round = t.limit
			t.over = true
		}
	}
	return wrapped
}

// seatRemoved keeps the current seat pointing at the same player, or at the one who
// followed the removed seat when it was the current one.
func (t *TurnManager) seatRemoved(removed, remaining int) (currentChanged bool) {
	switch {
	case removed < t.index:
		t.index--
	case removed == t.index:
		currentChanged = true
		t.seq++
		if t.index >= remaining {
			t.index = 0
			t.round++
			if t.round >= t.limit {
				t.round = t.limit
				t.over = true
			}
		}
	}
	return currentChanged
}

func (t *TurnManager) end() {
	t.over = true
}
