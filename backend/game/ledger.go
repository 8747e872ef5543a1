package game

import "github.com/adraglia/smashparty/backend/model"

type vote struct {
	choice     model.Choice
	reactionMs int64
}

type playerAgg struct {
	totalMs   int64
	voteCount int
	fastestMs int64
	slowestMs int64
}

type itemAgg struct {
	totalMs   int64
	voteCount int
}

// voteLedger keeps the two-phase vote state for every round of one room:
// a freely overwritable tentative slot per player, and a write-once
// committed slot. Aggregates are maintained incrementally on commit so the
// leaderboard never has to replay vote history.
type voteLedger struct {
	tentative map[int]map[string]vote
	committed map[int]map[string]vote
	players   map[string]*playerAgg
	items     map[int]*itemAgg
}

func newVoteLedger() *voteLedger {
	return &voteLedger{
		tentative: make(map[int]map[string]vote),
		committed: make(map[int]map[string]vote),
		players:   make(map[string]*playerAgg),
		items:     make(map[int]*itemAgg),
	}
}

// castTentative records or overwrites the player's uncommitted choice for a
// round. Reaction time is re-stamped on every overwrite; the last cast
// before the commit is the one that counts.
func (l *voteLedger) castTentative(round int, playerID string, choice model.Choice, reactionMs int64) {
	if reactionMs < 0 {
		reactionMs = 0
	}
	rv, ok := l.tentative[round]
	if !ok {
		rv = make(map[string]vote)
		l.tentative[round] = rv
	}
	rv[playerID] = vote{choice: choice, reactionMs: reactionMs}
}

func (l *voteLedger) hasTentative(round int, playerID string) bool {
	_, ok := l.tentative[round][playerID]
	return ok
}

func (l *voteLedger) hasCommitted(round int, playerID string) bool {
	_, ok := l.committed[round][playerID]
	return ok
}

// commit freezes the player's tentative vote for a round and folds it into
// the running player and item aggregates. A second commit for the same
// (player, round) is refused by the caller before this point.
func (l *voteLedger) commit(round int, playerID string) (vote, bool) {
	v, ok := l.tentative[round][playerID]
	if !ok {
		return vote{}, false
	}
	rv, ok := l.committed[round]
	if !ok {
		rv = make(map[string]vote)
		l.committed[round] = rv
	}
	rv[playerID] = v

	pa, ok := l.players[playerID]
	if !ok {
		pa = &playerAgg{fastestMs: v.reactionMs, slowestMs: v.reactionMs}
		l.players[playerID] = pa
	}
	pa.totalMs += v.reactionMs
	pa.voteCount++
	if v.reactionMs < pa.fastestMs {
		pa.fastestMs = v.reactionMs
	}
	if v.reactionMs > pa.slowestMs {
		pa.slowestMs = v.reactionMs
	}

	ia, ok := l.items[round]
	if !ok {
		ia = &itemAgg{}
		l.items[round] = ia
	}
	ia.totalMs += v.reactionMs
	ia.voteCount++

	return v, true
}

// committedFor returns the committed votes of one round.
func (l *voteLedger) committedFor(round int) map[string]vote {
	return l.committed[round]
}

// tally counts the committed votes of the given voter set. A vote committed
// by a player who has since left the round stays in the ledger (it already
// fed the reaction-time aggregates) but is not part of the round's verdict.
func (l *voteLedger) tally(round int, voters map[string]struct{}) (smash, pass int) {
	for id, v := range l.committed[round] {
		if _, ok := voters[id]; !ok {
			continue
		}
		if v.choice == model.ChoiceSmash {
			smash++
		} else {
			pass++
		}
	}
	return smash, pass
}

func (l *voteLedger) playerAverage(playerID string) (float64, bool) {
	pa, ok := l.players[playerID]
	if !ok || pa.voteCount == 0 {
		return 0, false
	}
	return float64(pa.totalMs) / float64(pa.voteCount), true
}

func (l *voteLedger) itemAverage(index int) (float64, bool) {
	ia, ok := l.items[index]
	if !ok || ia.voteCount == 0 {
		return 0, false
	}
	return float64(ia.totalMs) / float64(ia.voteCount), true
}

func (l *voteLedger) reset() {
	l.tentative = make(map[int]map[string]vote)
	l.committed = make(map[int]map[string]vote)
	l.players = make(map[string]*playerAgg)
	l.items = make(map[int]*itemAgg)
}
