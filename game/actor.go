package game

import (
	"context"
	"encoding/json"
	"time"

	"rankit/domain"
	"rankit/shared/logger"
)

// A room with no connections left is swept on the next tick after the
// grace period, giving everyone a window to reconnect.
const emptyRoomGrace = time.Minute * 2

const persistTimeout = time.Second * 2

type roomDescription struct {
	id           string
	playersCount int
	itemsCount   int
	itemsPerGame int
	started      bool
	private      bool
}

type roomJoinRequest struct {
	roomId   string
	playerId string
	nickname string
	session  NetworkSession
	errChan  chan error
}

// roomActor is the single logical unit that owns one Room aggregate.
// Every mutation for the room flows through its GameLoop goroutine, so
// the aggregate needs no locks and no partial write is ever observable.
type roomActor struct {
	state       *domain.Room
	private     bool
	parentLobby Lobby
	store       SnapshotStore
	archive     GameArchive

	conns       map[string]*client // playerId -> live connection
	inbox       chan commandEnvelope
	joinReqs    chan roomJoinRequest
	removals    chan *client
	ticks       chan time.Time
	pingPlayers chan struct{}
	done        chan struct{}

	emptySince time.Time
}

func newRoomActor(state *domain.Room, private bool, store SnapshotStore, archive GameArchive) *roomActor {
	return &roomActor{
		state:       state,
		private:     private,
		store:       store,
		archive:     archive,
		conns:       make(map[string]*client),
		inbox:       make(chan commandEnvelope, 1024),
		joinReqs:    make(chan roomJoinRequest, 64),
		removals:    make(chan *client, 64),
		ticks:       make(chan time.Time, 24),
		pingPlayers: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (a *roomActor) SetParentLobby(l Lobby) {
	a.parentLobby = l
}

func (a *roomActor) Description() roomDescription {
	return roomDescription{
		id:           a.state.Id,
		playersCount: len(a.state.Players),
		itemsCount:   len(a.state.Items),
		itemsPerGame: a.state.Config.ItemsPerGame,
		started:      a.state.Status != domain.StatusLobby,
		private:      a.private,
	}
}

// --- non-blocking signals from the lobby actor ---

func (a *roomActor) Tick(now time.Time) {
	select {
	case a.ticks <- now:
	default:
	}
}

func (a *roomActor) PingPlayers() {
	select {
	case a.pingPlayers <- struct{}{}:
	default:
	}
}

func (a *roomActor) RequestJoin(jreq roomJoinRequest) {
	select {
	case a.joinReqs <- jreq:
	default:
		jreq.errChan <- domain.ErrRoomNotFound
		close(jreq.errChan)
	}
}

// CloseAndRelease asks the actor to shut down. Connection teardown
// happens inside GameLoop so only one goroutine ever touches conns.
func (a *roomActor) CloseAndRelease() {
	close(a.done)
}

func (a *roomActor) GameLoop() {
	logger.Infof("[Room %s] Game loop starting", a.state.Id)
	for {
		select {
		case <-a.done:
			for _, c := range a.conns {
				a.closeClient(c, "room-closed")
			}
			logger.Infof("[Room %s] Game loop released", a.state.Id)
			return
		case now := <-a.ticks:
			a.handleTick(now)
		case <-a.pingPlayers:
			for _, c := range a.conns {
				c.ping()
			}
		case jreq := <-a.joinReqs:
			a.handleJoinRequest(jreq, time.Now())
		case c := <-a.removals:
			a.handleDisconnect(c, time.Now())
		case env := <-a.inbox:
			a.handleCommand(env, time.Now())
		}
	}
}

// --- join / disconnect ---

func (a *roomActor) handleJoinRequest(jreq roomJoinRequest, now time.Time) {
	if existing := a.state.Player(jreq.playerId); existing != nil {
		a.handleReconnect(existing, jreq, now)
		return
	}

	_, err := a.state.AddPlayer(jreq.playerId, jreq.nickname, now)
	if err != nil {
		jreq.errChan <- err
		close(jreq.errChan)
		return
	}
	a.attach(jreq.playerId, jreq.session)
	close(jreq.errChan)

	logger.Infof("[Room %s] Player %s (%s) joined", a.state.Id, jreq.playerId, jreq.nickname)
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.persist()
	a.updateDescription()
}

func (a *roomActor) handleReconnect(player *domain.Player, jreq roomJoinRequest, now time.Time) {
	player.Connected = true
	a.emptySince = time.Time{}
	a.attach(player.Id, jreq.session)
	close(jreq.errChan)

	logger.Infof("[Room %s] Player %s (%s) reconnected", a.state.Id, player.Id, player.Nickname)
	a.broadcast(domain.Event{Type: domain.EventPlayerReconnected, Payload: domain.PlayerEventPayload{
		PlayerId: player.Id,
		Nickname: player.Nickname,
	}})
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.state.LastActivityAt = now
	a.persist()
}

func (a *roomActor) attach(playerId string, session NetworkSession) {
	if old, ok := a.conns[playerId]; ok {
		a.closeClient(old, "superseded")
	}
	c := newClient(playerId, session)
	c.roomChan = a.inbox
	c.removeMe = a.removals
	a.conns[playerId] = c
	go c.ReadPump()
	go c.WritePump()
}

// closeClient tears a connection down from the actor side. Its
// ReadPump may still emit one removal signal; handleDisconnect drops it
// because the conns entry no longer points at this client.
func (a *roomActor) closeClient(c *client, code string) {
	delete(a.conns, c.playerId)
	close(c.outbox)
	close(c.pingChan)
	c.session.Close(code)
}

// handleDisconnect marks the player disconnected but keeps them on the
// roster for a later reconnect. The turn is NOT advanced here; a
// disconnected holder's turn resolves through the turn timer.
func (a *roomActor) handleDisconnect(c *client, now time.Time) {
	if a.conns[c.playerId] != c {
		return // an already superseded connection
	}
	delete(a.conns, c.playerId)
	close(c.outbox)
	close(c.pingChan)
	c.session.Close("")

	player := a.state.Player(c.playerId)
	if player == nil {
		return
	}
	player.Connected = false
	logger.Infof("[Room %s] Player %s disconnected", a.state.Id, c.playerId)

	if a.state.MigrateHostIfNeeded(c.playerId) {
		logger.Infof("[Room %s] Host migrated to %s", a.state.Id, a.state.HostPlayerId)
	}
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.persist()

	if len(a.conns) == 0 {
		a.emptySince = now
	}
}

// --- client commands ---

func (a *roomActor) handleCommand(env commandEnvelope, now time.Time) {
	switch env.command.Action {
	case ActionStartGame:
		a.handleStartGame(env.from, now)
	case ActionSubmitItem:
		a.handleSubmitItem(env.from, env.command, now)
	case ActionRankItem:
		a.handleRankItem(env.from, env.command, now)
	case ActionUpdateConfig:
		a.handleUpdateConfig(env.from, env.command, now)
	case ActionResetRoom:
		a.handleResetRoom(env.from, now)
	case ActionLeaveRoom:
		a.handleLeaveRoom(env.from, now)
	default:
		logger.Debugf("[Room %s] Unknown action %q from %s", a.state.Id, env.command.Action, env.from.playerId)
	}
}

func (a *roomActor) handleStartGame(from *client, now time.Time) {
	if from.playerId != a.state.HostPlayerId {
		a.sendError(from, domain.ErrNotHost)
		return
	}
	if err := a.state.StartGame(now); err != nil {
		a.sendError(from, err)
		return
	}
	logger.Infof("[Room %s] Game started, first turn %s", a.state.Id, a.state.CurrentTurnPlayerId)
	a.broadcast(domain.Event{Type: domain.EventGameStarted})
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.broadcastTurnChanged(a.state.CurrentTurnPlayerId)
	a.persist()
	a.updateDescription()
}

func (a *roomActor) handleSubmitItem(from *client, cmd ClientCommand, now time.Time) {
	item, err := a.state.AddItem(from.playerId, cmd.Text, cmd.Emoji, now)
	if err != nil {
		a.sendError(from, err)
		return
	}
	a.broadcast(domain.Event{Type: domain.EventItemSubmitted, Payload: domain.ItemSubmittedPayload{
		Item:       item,
		TimerEndAt: unixMilliOrZero(a.state.RankingTimerEndAt),
	}})

	if a.state.Config.SubmissionMode == domain.SubmissionRoundRobin {
		if change, ok := a.state.AdvanceTurn(now); ok {
			a.broadcastTurnChanged(change.NextTurnPlayerId)
		}
	}
	a.persist()
	a.updateDescription()
}

func (a *roomActor) handleRankItem(from *client, cmd ClientCommand, now time.Time) {
	if err := a.state.RankItem(from.playerId, cmd.ItemId, cmd.Slot, now); err != nil {
		a.sendError(from, err)
		return
	}
	a.afterRankingWrite(from.playerId, now)
	a.persist()
}

// afterRankingWrite re-evaluates everything a ranking write can change:
// the shared ranking deadline, the writer's catch-up status, and the
// completion predicate.
func (a *roomActor) afterRankingWrite(playerId string, now time.Time) {
	if a.latestItemFullyRanked() {
		a.state.ClearRankingTimer()
	}
	var turnChange domain.TurnChange
	var turnChanged bool
	if a.state.CheckCaughtUp(playerId) {
		logger.Infof("[Room %s] Player %s caught up", a.state.Id, playerId)
		// a stalled rotation restarts once someone is active again
		turnChange, turnChanged = a.state.EnsureTurnHolder(now)
	}
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	if turnChanged {
		a.broadcastTurnChanged(turnChange.NextTurnPlayerId)
	}

	if a.state.Status == domain.StatusInProgress && a.state.ReadyToEnd() {
		a.finishGame(now)
	}
}

func (a *roomActor) latestItemFullyRanked() bool {
	if len(a.state.Items) == 0 {
		return false
	}
	latest := a.state.Items[len(a.state.Items)-1]
	for _, p := range a.state.Players {
		if _, ranked := p.Rankings[latest.Id]; !ranked {
			return false
		}
	}
	return true
}

func (a *roomActor) handleUpdateConfig(from *client, cmd ClientCommand, now time.Time) {
	if from.playerId != a.state.HostPlayerId {
		a.sendError(from, domain.ErrNotHost)
		return
	}
	if cmd.Config == nil {
		return
	}
	if err := a.state.UpdateConfig(*cmd.Config, now); err != nil {
		a.sendError(from, err)
		return
	}
	a.broadcast(domain.Event{Type: domain.EventConfigUpdated, Payload: a.state.Config})
	a.persist()
	a.updateDescription()
}

func (a *roomActor) handleResetRoom(from *client, now time.Time) {
	if from.playerId != a.state.HostPlayerId {
		a.sendError(from, domain.ErrNotHost)
		return
	}
	a.state.Reset(now)
	logger.Infof("[Room %s] Reset for a rematch", a.state.Id)
	a.broadcast(domain.Event{Type: domain.EventRoomReset})
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.persist()
	a.updateDescription()
}

func (a *roomActor) handleLeaveRoom(from *client, now time.Time) {
	playerId := from.playerId
	player := a.state.Player(playerId)
	if player == nil {
		return
	}

	a.state.RemovePlayer(playerId)
	a.closeClient(from, "left")
	logger.Infof("[Room %s] Player %s left", a.state.Id, playerId)

	if len(a.state.Players) == 0 {
		a.destroy()
		return
	}

	a.broadcast(domain.Event{Type: domain.EventPlayerLeft, Payload: domain.PlayerEventPayload{
		PlayerId: playerId,
		Nickname: player.Nickname,
	}})
	// a departing holder hands the turn off, or clears it when nobody
	// is active yet
	if change, ok := a.state.EnsureTurnHolder(now); ok {
		a.broadcastTurnChanged(change.NextTurnPlayerId)
	}
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})

	// a departing laggard may have been the last thing blocking the end
	if a.state.Status == domain.StatusInProgress && a.state.ReadyToEnd() {
		a.finishGame(now)
	}
	a.persist()
	a.updateDescription()

	if len(a.conns) == 0 {
		a.emptySince = now
	}
}

// --- timers ---

func (a *roomActor) handleTick(now time.Time) {
	if change, fired := a.state.CheckTurnTimeout(now); fired {
		logger.Infof("[Room %s] Turn timer expired, turn forced to %s", a.state.Id, change.NextTurnPlayerId)
		a.broadcastTurnChanged(change.NextTurnPlayerId)
		a.persist()
	}

	if a.state.CheckRankingTimeout(now) {
		logger.Infof("[Room %s] Ranking timer expired, slots auto-assigned", a.state.Id)
		for _, p := range a.state.Players {
			a.state.CheckCaughtUp(p.Id)
		}
		a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
		if change, ok := a.state.EnsureTurnHolder(now); ok {
			a.broadcastTurnChanged(change.NextTurnPlayerId)
		}
		if a.state.Status == domain.StatusInProgress && a.state.ReadyToEnd() {
			a.finishGame(now)
		}
		a.persist()
	}

	if len(a.conns) == 0 && !a.emptySince.IsZero() && now.Sub(a.emptySince) >= emptyRoomGrace {
		logger.Infof("[Room %s] Empty past grace period, removing", a.state.Id)
		a.destroy()
	}
}

// --- completion ---

func (a *roomActor) finishGame(now time.Time) {
	standings := a.state.Standings()
	if err := a.state.EndGame(now); err != nil {
		return
	}
	logger.Infof("[Room %s] Game over, %d items ranked by %d players", a.state.Id, len(standings), len(a.state.Players))
	a.broadcast(domain.Event{Type: domain.EventGameEnded, Payload: domain.GameEndedPayload{Standings: standings}})
	a.broadcast(domain.Event{Type: domain.EventRoomUpdated, Payload: a.state})
	a.updateDescription()

	if a.archive != nil {
		snapshot := *a.state
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := a.archive.SaveResult(ctx, &snapshot, standings); err != nil {
				logger.Warningf("[Room %s] Archiving result failed: %v", snapshot.Id, err)
			}
		}()
	}
}

func (a *roomActor) destroy() {
	if a.parentLobby != nil {
		a.parentLobby.RemoveRoom(a.state.Id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.Delete(ctx, a.state.Id); err != nil {
		logger.Warningf("[Room %s] Snapshot delete failed: %v", a.state.Id, err)
	}
}

// --- plumbing ---

// persist writes the whole snapshot after a mutation. In-memory state
// is not rolled back on failure; availability wins over strict
// durability here and the miss is only logged.
func (a *roomActor) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.Put(ctx, a.state); err != nil {
		logger.Warningf("[Room %s] Snapshot put failed: %v", a.state.Id, err)
	}
}

func (a *roomActor) updateDescription() {
	if a.parentLobby != nil {
		a.parentLobby.RequestUpdateDescription(a.Description())
	}
}

func (a *roomActor) broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to marshal %s event: %v", a.state.Id, event.Type, err)
		return
	}
	for _, c := range a.conns {
		c.send(data)
	}
}

func (a *roomActor) broadcastTurnChanged(playerId string) {
	a.broadcast(domain.Event{Type: domain.EventTurnChanged, Payload: domain.TurnChangedPayload{
		PlayerId:   playerId,
		TimerEndAt: unixMilliOrZero(a.state.TimerEndAt),
	}})
}

func (a *roomActor) sendError(to *client, err error) {
	data, merr := json.Marshal(domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{
		Message: err.Error(),
		Code:    domain.ErrorCode(err),
	}})
	if merr != nil {
		return
	}
	to.send(data)
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
