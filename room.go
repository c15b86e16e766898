/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Room owns membership, host authority and the running game for one code.
//
// Exported methods take mu themselves. Methods ending in Locked expect the
// caller to hold mu, which lets the gateway mutate and broadcast inside a
// single critical section.
type Room struct {
	mu sync.Mutex

	id   string
	code string

	hostID       string
	players      map[string]*Player
	order        []string
	disconnected map[string]*DisconnectedPlayer

	selectedGame string
	game         GameState
	gameScored   bool

	active       bool
	createdAt    time.Time
	lastActivity time.Time

	now     func() time.Time
	onClose func(*Room)
}

// Removal describes the outcome of a player leaving, disconnecting or being
// reaped.
type Removal struct {
	PlayerID    string
	WasHost     bool
	HostChanged bool
	NewHostID   string
	Closed      bool
	Events      []any
}

// Cleanup is the outcome of one CleanupDisconnected pass.
type Cleanup struct {
	Removed     []Member
	HostChanged bool
	NewHostID   string
	Closed      bool
}

func newRoom(id, code, hostID, hostName string, now func() time.Time, onClose func(*Room)) *Room {
	if now == nil {
		now = time.Now
	}

	t := now()

	r := &Room{
		id:           id,
		code:         code,
		hostID:       hostID,
		players:      make(map[string]*Player),
		disconnected: make(map[string]*DisconnectedPlayer),
		active:       true,
		createdAt:    t,
		lastActivity: t,
		now:          now,
		onClose:      onClose,
	}

	r.players[hostID] = &Player{ID: hostID, Name: hostName, JoinedAt: t, LastActivity: t}
	r.order = append(r.order, hostID)

	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) touchLocked() {
	r.lastActivity = r.now()
}

func (r *Room) memberCountLocked() int {
	return len(r.players) + len(r.disconnected)
}

func (r *Room) membersLocked() []Member {
	members := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		members = append(members, Member{ID: id, Name: r.players[id].Name})
	}

	return members
}

func (r *Room) nameTakenLocked(name, except string) bool {
	for id, p := range r.players {
		if id != except && p.Name == name {
			return true
		}
	}

	for id, d := range r.disconnected {
		if id != except && d.Name == name {
			return true
		}
	}

	return false
}

func (r *Room) gameRunningLocked() bool {
	return r.game != nil && r.game.Status() != StatusWaiting && r.game.Status() != StatusGameOver
}

// ensureHostLocked keeps hostID pointing at a connected player whenever one
// exists, promoting the earliest joiner.
func (r *Room) ensureHostLocked() (string, bool) {
	if _, ok := r.players[r.hostID]; ok {
		return r.hostID, false
	}

	previous := r.hostID
	r.hostID = ""
	if len(r.order) > 0 {
		r.hostID = r.order[0]
	}

	return r.hostID, r.hostID != previous
}

func (r *Room) dropPlayerLocked(id string) {
	delete(r.players, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
}

func (r *Room) AddPlayer(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.addPlayerLocked(id, name)
}

func (r *Room) addPlayerLocked(id, name string) error {
	if id == "" || name == "" {
		return ErrIncomplete
	}

	if !r.active {
		return ErrRoomClosed
	}

	if r.game != nil && r.game.Status() != StatusWaiting {
		return fmt.Errorf("%w: the game has already started", ErrInvalidState)
	}

	if _, ok := r.players[id]; ok {
		return fmt.Errorf("%w: player is already in this room", ErrConflict)
	}

	if _, ok := r.disconnected[id]; ok {
		return fmt.Errorf("%w: player is already in this room", ErrConflict)
	}

	if r.nameTakenLocked(name, "") {
		return ErrNameTaken
	}

	t := r.now()
	r.players[id] = &Player{ID: id, Name: name, JoinedAt: t, LastActivity: t}
	r.order = append(r.order, id)

	if r.hostID == "" {
		r.hostID = id
	}

	r.touchLocked()

	return nil
}

func (r *Room) RemovePlayer(id string) (Removal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removePlayerLocked(id)
}

// removePlayerLocked removes a connected or disconnected member for good.
func (r *Room) removePlayerLocked(id string) (Removal, error) {
	_, connected := r.players[id]
	_, away := r.disconnected[id]
	if !connected && !away {
		return Removal{}, ErrPlayerNotFound
	}

	out := Removal{PlayerID: id, WasHost: r.hostID == id}

	r.dropPlayerLocked(id)
	delete(r.disconnected, id)
	r.touchLocked()

	if r.memberCountLocked() == 0 {
		r.closeLocked()
		out.Closed = true

		return out, nil
	}

	if out.WasHost {
		out.NewHostID, out.HostChanged = r.ensureHostLocked()
	}

	out.Events = r.membersChangedLocked()

	return out, nil
}

// admitLocked reports whether name could join right now, either as a new
// player or by reclaiming a disconnected seat.
func (r *Room) admitLocked(name string) error {
	if name == "" {
		return ErrIncomplete
	}

	if !r.active {
		return ErrRoomClosed
	}

	if _, ok := r.disconnectedByNameLocked(name); ok {
		return nil
	}

	if r.nameTakenLocked(name, "") {
		return ErrNameTaken
	}

	if r.game != nil && r.game.Status() != StatusWaiting {
		return fmt.Errorf("%w: the game has already started", ErrInvalidState)
	}

	return nil
}

func (r *Room) Admit(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.admitLocked(name)
}

func (r *Room) MarkDisconnected(id string) (Removal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.markDisconnectedLocked(id)
}

// markDisconnectedLocked moves a player out of the connected set. The entry is
// kept under the same id until the player reconnects or is reaped.
func (r *Room) markDisconnectedLocked(id string) (Removal, error) {
	p, ok := r.players[id]
	if !ok {
		return Removal{}, ErrPlayerNotFound
	}

	out := Removal{PlayerID: id, WasHost: r.hostID == id}

	r.disconnected[id] = &DisconnectedPlayer{
		Name:           p.Name,
		DisconnectedAt: r.now(),
		WasHost:        out.WasHost,
		Score:          p.Score,
	}
	r.dropPlayerLocked(id)
	r.touchLocked()

	if out.WasHost {
		out.NewHostID, out.HostChanged = r.ensureHostLocked()
	}

	out.Events = r.membersChangedLocked()

	return out, nil
}

func (r *Room) ReconnectPlayer(oldID, newID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.reconnectPlayerLocked(oldID, newID, name)

	return err
}

func (r *Room) disconnectedByNameLocked(name string) (string, bool) {
	for id, d := range r.disconnected {
		if d.Name == name {
			return id, true
		}
	}

	return "", false
}

// reconnectPlayerLocked restores a disconnected player under newID, matching
// on exact name. It returns the id the player was disconnected under.
func (r *Room) reconnectPlayerLocked(oldID, newID, name string) (string, error) {
	if !r.active {
		return "", ErrRoomClosed
	}

	key := oldID
	if d, ok := r.disconnected[key]; !ok || d.Name != name {
		if key, ok = r.disconnectedByNameLocked(name); !ok {
			return "", fmt.Errorf("%w: no disconnected player named %q", ErrNotFound, name)
		}
	}

	if _, ok := r.players[newID]; ok {
		return "", fmt.Errorf("%w: player is already connected", ErrConflict)
	}

	entry := r.disconnected[key]
	delete(r.disconnected, key)

	t := r.now()
	r.players[newID] = &Player{ID: newID, Name: name, Score: entry.Score, JoinedAt: t, LastActivity: t}
	r.order = append(r.order, newID)

	if entry.WasHost || r.hostID == "" {
		r.hostID = newID
		for _, d := range r.disconnected {
			d.WasHost = false
		}
	}

	if r.game != nil && key != newID {
		r.game.Rekey(key, newID)
	}

	r.touchLocked()

	return key, nil
}

func (r *Room) UpdatePlayerName(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.updatePlayerNameLocked(id, name)

	return err
}

// updatePlayerNameLocked renames a player in place and returns the old name.
func (r *Room) updatePlayerNameLocked(id, name string) (string, error) {
	p, ok := r.players[id]
	if !ok {
		return "", ErrPlayerNotFound
	}

	if name == "" {
		return "", ErrIncomplete
	}

	if r.nameTakenLocked(name, id) {
		return "", ErrNameTaken
	}

	old := p.Name
	p.Name = name
	p.LastActivity = r.now()
	r.touchLocked()

	return old, nil
}

func (r *Room) SelectGame(actorID string, info GameInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.selectGameLocked(actorID, info)
}

func (r *Room) selectGameLocked(actorID string, info GameInfo) error {
	if !r.active {
		return ErrRoomClosed
	}

	if r.hostID != actorID {
		return ErrNotHost
	}

	if r.gameRunningLocked() {
		return ErrGameRunning
	}

	r.selectedGame = info.ID
	r.touchLocked()

	return nil
}

func (r *Room) StartGame(gameID string, state GameState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.startGameLocked(gameID, state)
}

func (r *Room) startGameLocked(gameID string, state GameState) error {
	if !r.active {
		return ErrRoomClosed
	}

	if len(r.players) < 2 {
		return fmt.Errorf("%w: at least 2 players are needed to start", ErrInvalidState)
	}

	r.selectedGame = gameID
	r.game = state
	r.gameScored = false
	r.touchLocked()

	return nil
}

// startSelectedLocked starts the game the host picked earlier.
func (r *Room) startSelectedLocked(actorID string, catalog *Catalog) error {
	if !r.active {
		return ErrRoomClosed
	}

	if r.hostID != actorID {
		return ErrNotHost
	}

	if r.selectedGame == "" {
		return fmt.Errorf("%w: no game has been selected", ErrInvalidState)
	}

	if r.gameRunningLocked() {
		return ErrGameRunning
	}

	engine, err := catalog.Engine(r.selectedGame)
	if err != nil {
		return err
	}

	info := engine.Info()
	if need := max(2, info.MinPlayers); len(r.players) < need {
		return fmt.Errorf("%w: %s needs at least %d players", ErrInvalidState, info.Name, need)
	}

	if info.MaxPlayers > 0 && len(r.players) > info.MaxPlayers {
		return fmt.Errorf("%w: %s allows at most %d players", ErrInvalidState, info.Name, info.MaxPlayers)
	}

	state, err := engine.Initialize(r.membersLocked())
	if err != nil {
		return err
	}

	return r.startGameLocked(r.selectedGame, state)
}

func (r *Room) EndGame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endGameLocked()
}

func (r *Room) endGameLocked() {
	r.game = nil
	r.selectedGame = ""
	r.gameScored = false
	r.touchLocked()
}

func (r *Room) ApplyAction(playerID string, action Action) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applyActionLocked(playerID, action)
}

func (r *Room) applyActionLocked(playerID string, action Action) ([]any, error) {
	if !r.active {
		return nil, ErrRoomClosed
	}

	if r.game == nil {
		return nil, ErrNoGame
	}

	if _, ok := r.players[playerID]; !ok {
		return nil, fmt.Errorf("%w: you are not a player in this room", ErrForbidden)
	}

	msgs, err := r.game.Apply(playerID, action, r.membersLocked())
	if err != nil {
		return nil, err
	}

	r.players[playerID].LastActivity = r.now()
	r.touchLocked()
	r.recordGameScoresLocked()

	return msgs, nil
}

func (r *Room) membersChangedLocked() []any {
	if r.game == nil {
		return nil
	}

	msgs := r.game.MembersChanged(r.membersLocked())
	r.recordGameScoresLocked()

	return msgs
}

// recordGameScoresLocked adds a finished game's scores to the room totals once.
func (r *Room) recordGameScoresLocked() {
	if r.game == nil || r.gameScored || r.game.Status() != StatusGameOver {
		return
	}

	for id, score := range r.game.Scores() {
		if p, ok := r.players[id]; ok {
			p.Score += score
		} else if d, ok := r.disconnected[id]; ok {
			d.Score += score
		}
	}

	r.gameScored = true
}

func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()
}

func (r *Room) closeLocked() {
	if !r.active {
		return
	}

	r.active = false
	if r.onClose != nil {
		r.onClose(r)
	}
}

func (r *Room) CleanupDisconnected(maxAge time.Duration) Cleanup {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cleanupDisconnectedLocked(maxAge)
}

// cleanupDisconnectedLocked drops players that stayed disconnected longer than
// maxAge. It leaves lastActivity alone so abandoned rooms still age out.
func (r *Room) cleanupDisconnectedLocked(maxAge time.Duration) Cleanup {
	var out Cleanup

	if !r.active {
		return out
	}

	t := r.now()
	for id, d := range r.disconnected {
		if t.Sub(d.DisconnectedAt) > maxAge {
			out.Removed = append(out.Removed, Member{ID: id, Name: d.Name})
		}
	}

	if len(out.Removed) == 0 {
		return out
	}

	slices.SortFunc(out.Removed, func(a, b Member) int { return cmp.Compare(a.ID, b.ID) })

	for _, m := range out.Removed {
		delete(r.disconnected, m.ID)
	}

	if r.memberCountLocked() == 0 {
		r.closeLocked()
		out.Closed = true

		return out
	}

	out.NewHostID, out.HostChanged = r.ensureHostLocked()

	return out
}

func (r *Room) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActivity
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.hostID
}

func (r *Room) Players() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playersLocked()
}

func (r *Room) playersLocked() map[string]string {
	out := make(map[string]string, len(r.players))
	for id, p := range r.players {
		out[id] = p.Name
	}

	return out
}

func (r *Room) Scores() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scoresLocked()
}

func (r *Room) scoresLocked() map[string]int {
	out := make(map[string]int, len(r.players))
	for id, p := range r.players {
		out[id] = p.Score
	}

	return out
}

func (r *Room) Disconnected() map[string]DisconnectedPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disconnectedLocked()
}

func (r *Room) disconnectedLocked() map[string]DisconnectedPlayer {
	out := make(map[string]DisconnectedPlayer, len(r.disconnected))
	for id, d := range r.disconnected {
		out[id] = *d
	}

	return out
}

func (r *Room) Game() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.game
}

func (r *Room) SelectedGame() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.selectedGame
}

// RoomSnapshot is the externally visible state of a room. The internal room
// id is never part of it.
type RoomSnapshot struct {
	Code           string                        `json:"code"`
	HostID         string                        `json:"host_id"`
	Players        map[string]string             `json:"players"`
	PlayerScores   map[string]int                `json:"player_scores"`
	Disconnected   map[string]DisconnectedPlayer `json:"disconnected_players"`
	Roster         []PlayerView                  `json:"roster"`
	SelectedGame   string                        `json:"selected_game,omitempty"`
	GameInProgress bool                          `json:"game_in_progress"`
	GameStatus     string                        `json:"game_status,omitempty"`
	IsActive       bool                          `json:"is_active"`
	CreatedAt      time.Time                     `json:"created_at"`
	LastActivity   time.Time                     `json:"last_activity"`
}

func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() RoomSnapshot {
	s := RoomSnapshot{
		Code:           r.code,
		HostID:         r.hostID,
		Players:        r.playersLocked(),
		PlayerScores:   r.scoresLocked(),
		Disconnected:   r.disconnectedLocked(),
		Roster:         r.rosterLocked(),
		SelectedGame:   r.selectedGame,
		GameInProgress: r.game != nil,
		IsActive:       r.active,
		CreatedAt:      r.createdAt,
		LastActivity:   r.lastActivity,
	}

	if r.game != nil {
		s.GameStatus = r.game.Status()
	}

	return s
}

// rosterLocked lists connected players in join order, then disconnected ones
// sorted by name.
func (r *Room) rosterLocked() []PlayerView {
	out := make([]PlayerView, 0, r.memberCountLocked())
	for _, id := range r.order {
		p := r.players[id]
		out = append(out, PlayerView{ID: id, Name: p.Name, IsHost: id == r.hostID, Score: p.Score, Connected: true})
	}

	away := make([]PlayerView, 0, len(r.disconnected))
	for id, d := range r.disconnected {
		away = append(away, PlayerView{ID: id, Name: d.Name, IsHost: d.WasHost, Score: d.Score})
	}
	slices.SortFunc(away, func(a, b PlayerView) int { return cmp.Compare(a.Name, b.Name) })

	return append(out, away...)
}
