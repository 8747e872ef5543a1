package game

import (
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/adraglia/smashparty/backend/model"
)

const defaultSettleDelay = 3 * time.Second

// EventSink receives the domain events a room emits. The transport side fans
// broadcast events out to every member and unicast events to one player.
type EventSink interface {
	Deliver(roomID string, msgs ...model.Addressed)
}

type Config struct {
	ID          string
	Logger      *zerolog.Logger
	Clock       clockwork.Clock
	Sink        EventSink
	SettleDelay time.Duration

	// OnRetire is called once when the room leaves service, either because
	// the last player left or because an internal invariant tripped. The
	// directory uses it to drop its reference.
	OnRetire func(roomID string)
}

// Room is the synchronized-round state machine for one game session. All
// intent handlers serialize on mx; at most one transition is in flight at a
// time, and different rooms share nothing.
type Room struct {
	mx sync.Mutex

	id          string
	logger      zerolog.Logger
	clock       clockwork.Clock
	sink        EventSink
	settleDelay time.Duration
	onRetire    func(roomID string)

	phase        model.Phase
	players      []model.Player
	items        []model.Item
	results      []model.RoundResult
	currentRound int
	roundStart   time.Time
	// roundClosed is true between a round being scored and the settle-delay
	// advance; votes for the closed round are stale during that window.
	roundClosed bool
	// expectedVoters is snapshotted at round start. Leaves shrink it,
	// mid-round joins never grow it.
	expectedVoters map[string]struct{}
	ledger         *voteLedger

	advanceTimer  clockwork.Timer
	advanceCancel chan struct{}
	advanceGen    uint64
	retired       bool
}

func NewRoom(cfg Config) *Room {
	r := &Room{
		id:          cfg.ID,
		clock:       cfg.Clock,
		sink:        cfg.Sink,
		settleDelay: cfg.SettleDelay,
		onRetire:    cfg.OnRetire,
		phase:       model.PhaseWaiting,
		ledger:      newVoteLedger(),
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.settleDelay <= 0 {
		r.settleDelay = defaultSettleDelay
	}
	if cfg.Logger != nil {
		r.logger = cfg.Logger.With().Str("component", "room").Str("roomID", cfg.ID).Logger()
	} else {
		r.logger = zerolog.Nop()
	}
	return r
}

func (r *Room) ID() string {
	return r.id
}

// Join adds a player to the room. The first player to join becomes the
// creator. Joins are accepted in any non-finished phase; a mid-game joiner
// is not part of the in-progress round's voter set.
func (r *Room) Join(playerID, name string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phase == model.PhaseFinished {
		return ErrInvalidPhase
	}
	if r.find(playerID) >= 0 {
		return ErrDuplicatePlayer
	}

	p := model.Player{
		ID:        playerID,
		Name:      name,
		IsCreator: len(r.players) == 0,
	}
	r.players = append(r.players, p)
	r.logger.Debug().Str("playerID", playerID).Str("name", name).Msg("player joined")

	r.emit(
		model.Unicast(playerID, model.Event{Type: model.EventRoomSnapshot, Payload: r.snapshotLocked()}),
		model.Broadcast(model.Event{Type: model.EventPlayerJoined, Payload: model.PlayerJoinedPayload{
			PlayerName: name,
			Snapshot:   r.snapshotLocked(),
		}}),
	)
	return nil
}

// Leave removes a player. Removing the last player retires the room and
// discards any pending advance. A leave during an open round can complete
// it, since completion compares member sets.
func (r *Room) Leave(playerID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}

	name := r.players[idx].Name
	wasCreator := r.players[idx].IsCreator
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.expectedVoters, playerID)
	r.logger.Debug().Str("playerID", playerID).Str("name", name).Msg("player left")

	if len(r.players) == 0 {
		r.retireLocked("room emptied")
		return nil
	}
	if wasCreator {
		r.players[0].IsCreator = true
	}

	r.emit(model.Broadcast(model.Event{Type: model.EventPlayerLeft, Payload: model.PlayerLeftPayload{
		PlayerName: name,
		Snapshot:   r.snapshotLocked(),
	}}))

	switch r.phase {
	case model.PhaseWaiting:
		r.maybeStartVoting()
	case model.PhaseVoting:
		if !r.roundClosed {
			r.maybeCompleteRound()
		}
	}
	return nil
}

// SubmitItem appends an item during the waiting phase. Item order is
// submission order and fixes the round order.
func (r *Room) SubmitItem(playerID, mediaRef, label string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phase != model.PhaseWaiting {
		return ErrInvalidPhase
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}

	item := model.Item{
		Index:       len(r.items),
		MediaRef:    mediaRef,
		Label:       label,
		SubmitterID: playerID,
	}
	r.items = append(r.items, item)
	r.players[idx].HasSubmitted = true

	r.emit(model.Broadcast(model.Event{Type: model.EventItemSubmitted, Payload: model.ItemSubmittedPayload{
		PlayerName: r.players[idx].Name,
		Label:      label,
		ItemCount:  len(r.items),
	}}))
	return nil
}

// SetReady marks a player ready and starts the game once every present
// player is ready, at least two players are present, and at least one item
// has been submitted.
func (r *Room) SetReady(playerID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phase != model.PhaseWaiting {
		return ErrInvalidPhase
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}

	r.players[idx].Ready = true
	r.emit(model.Broadcast(model.Event{Type: model.EventReadyStatusChanged, Payload: model.ReadyStatusPayload{
		PlayerName: r.players[idx].Name,
		Snapshot:   r.snapshotLocked(),
	}}))

	r.maybeStartVoting()
	return nil
}

// CastVote records or overwrites the tentative vote for the open round.
// Reaction time is stamped from the round start at every cast; nothing is
// committed until ConfirmVote.
func (r *Room) CastVote(playerID string, roundIndex int, choice model.Choice) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phase != model.PhaseVoting {
		return ErrInvalidPhase
	}
	if r.find(playerID) < 0 {
		return ErrUnknownPlayer
	}
	if roundIndex != r.currentRound || r.roundClosed {
		return ErrStaleRound
	}
	if _, ok := r.expectedVoters[playerID]; !ok {
		// joined after the round started; the round predates them
		return ErrStaleRound
	}
	if r.ledger.hasCommitted(r.currentRound, playerID) {
		return ErrVoteAlreadyCast
	}

	reaction := r.clock.Now().Sub(r.roundStart).Milliseconds()
	r.ledger.castTentative(r.currentRound, playerID, choice, reaction)
	return nil
}

// ConfirmVote commits the player's tentative vote for the open round,
// exactly once. Committing the last expected vote scores the round.
func (r *Room) ConfirmVote(playerID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phase != model.PhaseVoting {
		return ErrInvalidPhase
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if r.roundClosed {
		return ErrStaleRound
	}
	if _, ok := r.expectedVoters[playerID]; !ok {
		return ErrStaleRound
	}
	if r.ledger.hasCommitted(r.currentRound, playerID) {
		return ErrVoteAlreadyCast
	}
	if _, ok := r.ledger.commit(r.currentRound, playerID); !ok {
		return ErrNoTentativeVote
	}

	r.emit(model.Broadcast(model.Event{Type: model.EventVoteAcknowledged, Payload: model.VoteAcknowledgedPayload{
		PlayerName:      r.players[idx].Name,
		RemainingVoters: r.remainingVotersLocked(),
	}}))

	r.maybeCompleteRound()
	return nil
}

// AdvanceRound is the creator-paced control: during an open round it scores
// the round with the votes committed so far, and during the settle delay it
// skips the rest of the wait.
func (r *Room) AdvanceRound(playerID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if !r.players[idx].IsCreator {
		return ErrNotRoomCreator
	}

	switch r.phase {
	case model.PhaseWaiting:
		if len(r.items) == 0 {
			return ErrEmptySubmissionSet
		}
		// starting the game still goes through the ready check
		return ErrInvalidPhase
	case model.PhaseVoting:
		if r.roundClosed {
			r.cancelAdvanceLocked()
			r.advanceLocked()
			return nil
		}
		r.completeRoundLocked()
		return nil
	default:
		return ErrInvalidPhase
	}
}

// Reset returns a finished room to the waiting phase for a replay: players
// and items are kept, ready flags, votes, results and the round pointer are
// cleared.
func (r *Room) Reset(playerID string) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	idx := r.find(playerID)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	if !r.players[idx].IsCreator {
		return ErrNotRoomCreator
	}
	if r.phase != model.PhaseFinished {
		return ErrInvalidPhase
	}

	r.cancelAdvanceLocked()
	r.phase = model.PhaseWaiting
	r.currentRound = 0
	r.roundClosed = false
	r.results = nil
	r.expectedVoters = nil
	r.ledger.reset()
	for i := range r.players {
		r.players[i].Ready = false
	}

	r.logger.Debug().Msg("room reset for replay")
	r.emit(model.Broadcast(model.Event{Type: model.EventRoomSnapshot, Payload: r.snapshotLocked()}))
	return nil
}

// Snapshot returns a copy of the observable room state.
func (r *Room) Snapshot() model.RoomSnapshot {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.snapshotLocked()
}

func (r *Room) empty() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.players) == 0 || r.retired
}

func (r *Room) find(playerID string) int {
	for i := range r.players {
		if r.players[i].ID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) snapshotLocked() model.RoomSnapshot {
	snap := model.RoomSnapshot{
		RoomID:            r.id,
		Phase:             r.phase,
		Players:           append([]model.Player(nil), r.players...),
		CurrentRoundIndex: r.currentRound,
		TotalRounds:       len(r.items),
		Results:           append([]model.RoundResult(nil), r.results...),
	}
	if r.phase == model.PhaseVoting && r.currentRound < len(r.items) {
		item := r.items[r.currentRound]
		snap.CurrentItem = &item
	}
	return snap
}

func (r *Room) maybeStartVoting() {
	if r.phase != model.PhaseWaiting || len(r.players) < 2 || len(r.items) == 0 {
		return
	}
	for i := range r.players {
		if !r.players[i].Ready {
			return
		}
	}
	r.phase = model.PhaseVoting
	r.logger.Info().Int("items", len(r.items)).Int("players", len(r.players)).Msg("voting started")
	r.startRoundLocked(0)
}

func (r *Room) startRoundLocked(index int) {
	if index < 0 || index >= len(r.items) {
		r.invariantViolation("round index out of range")
		return
	}
	r.currentRound = index
	r.roundClosed = false
	r.roundStart = r.clock.Now()
	r.expectedVoters = make(map[string]struct{}, len(r.players))
	for i := range r.players {
		r.expectedVoters[r.players[i].ID] = struct{}{}
	}
	r.emit(model.Broadcast(model.Event{Type: model.EventRoundStarted, Payload: model.RoundStartedPayload{
		Item:        r.items[index],
		RoundIndex:  index,
		TotalRounds: len(r.items),
	}}))
}

func (r *Room) remainingVotersLocked() int {
	remaining := 0
	for id := range r.expectedVoters {
		if !r.ledger.hasCommitted(r.currentRound, id) {
			remaining++
		}
	}
	return remaining
}

// maybeCompleteRound scores the round once every member of the expected
// voter set has a committed vote. This is set equality, not a count match: a
// leave mid-round re-shrinks the set and is re-checked by the caller.
func (r *Room) maybeCompleteRound() {
	if r.phase != model.PhaseVoting || r.roundClosed {
		return
	}
	for id := range r.expectedVoters {
		if !r.ledger.hasCommitted(r.currentRound, id) {
			return
		}
	}
	r.completeRoundLocked()
}

func (r *Room) completeRoundLocked() {
	smash, pass := r.ledger.tally(r.currentRound, r.expectedVoters)
	outcome := model.OutcomePassed
	if smash > pass {
		outcome = model.OutcomeSmashed
	}
	result := model.RoundResult{
		ItemIndex:  r.currentRound,
		Outcome:    outcome,
		SmashCount: smash,
		PassCount:  pass,
	}
	r.results = append(r.results, result)
	r.roundClosed = true
	r.logger.Debug().
		Int("round", r.currentRound).
		Int("smash", smash).
		Int("pass", pass).
		Str("outcome", string(outcome)).
		Msg("round scored")

	r.emit(model.Broadcast(model.Event{Type: model.EventRoundResult, Payload: model.RoundResultPayload{
		Item:       r.items[r.currentRound],
		Outcome:    outcome,
		SmashCount: smash,
		PassCount:  pass,
	}}))

	r.scheduleAdvanceLocked()
}

// scheduleAdvanceLocked arms the settle-delay continuation. The generation
// counter makes a stale fire a no-op after a cancel, manual advance or
// reset.
func (r *Room) scheduleAdvanceLocked() {
	r.advanceGen++
	gen := r.advanceGen
	timer := r.clock.NewTimer(r.settleDelay)
	cancel := make(chan struct{})
	r.advanceTimer = timer
	r.advanceCancel = cancel

	go func() {
		select {
		case <-timer.Chan():
			r.advanceAfterSettle(gen)
		case <-cancel:
			stopAndDrainTimer(timer)
		}
	}()
}

func (r *Room) advanceAfterSettle(gen uint64) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.retired || gen != r.advanceGen || r.phase != model.PhaseVoting || !r.roundClosed {
		return
	}
	r.advanceLocked()
}

func (r *Room) advanceLocked() {
	r.roundClosed = false
	r.currentRound++
	if r.currentRound > len(r.items) {
		r.invariantViolation("round pointer past submission set")
		return
	}
	if r.currentRound == len(r.items) {
		r.phase = model.PhaseFinished
		lb := computeLeaderboard(r.players, r.items, r.ledger)
		r.logger.Info().Int("rounds", len(r.results)).Msg("game finished")
		r.emit(model.Broadcast(model.Event{Type: model.EventGameFinished, Payload: model.GameFinishedPayload{
			Results:     append([]model.RoundResult(nil), r.results...),
			Leaderboard: lb,
		}}))
		return
	}
	r.startRoundLocked(r.currentRound)
}

func (r *Room) cancelAdvanceLocked() {
	if r.advanceCancel != nil {
		close(r.advanceCancel)
		r.advanceCancel = nil
		r.advanceTimer = nil
	}
	r.advanceGen++
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (r *Room) retireLocked(reason string) {
	r.cancelAdvanceLocked()
	r.retired = true
	r.logger.Info().Str("reason", reason).Msg("room retired")
	if r.onRetire != nil {
		r.onRetire(r.id)
	}
}

// invariantViolation handles internal inconsistencies that should be
// impossible: log the full state and retire the room instead of letting a
// corrupted round reach clients.
func (r *Room) invariantViolation(msg string) {
	r.logger.Error().
		Str("state", spew.Sdump(r.snapshotLocked())).
		Msg("invariant violation: " + msg)
	r.retireLocked("invariant violation")
}

func (r *Room) emit(msgs ...model.Addressed) {
	if r.sink == nil {
		return
	}
	r.sink.Deliver(r.id, msgs...)
}
