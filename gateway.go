/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClientMessage is every inbound channel event, flattened.
type ClientMessage struct {
	Type        string   `json:"type"`
	RoomCode    string   `json:"room_code,omitempty"`
	PlayerID    string   `json:"player_id,omitempty"`
	PlayerName  string   `json:"player_name,omitempty"`
	NewNickname string   `json:"new_nickname,omitempty"`
	GameID      string   `json:"game_id,omitempty"`
	Action      string   `json:"action,omitempty"`
	AnswerIndex *int     `json:"answer_index,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Color       string   `json:"color,omitempty"`
	Thickness   *float64 `json:"thickness,omitempty"`
	Guess       string   `json:"guess,omitempty"`
}

func (m ClientMessage) action() Action {
	return Action{
		Name:        m.Action,
		AnswerIndex: m.AnswerIndex,
		X:           m.X,
		Y:           m.Y,
		Color:       m.Color,
		Thickness:   m.Thickness,
		Guess:       m.Guess,
	}
}

type SessionInfoMessage struct {
	Type       string `json:"type"` // "session_info"
	RoomCode   string `json:"room_code"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	IsMember   bool   `json:"is_member"`
	IsHost     bool   `json:"is_host"`
}

type RoomStateMessage struct {
	Type string       `json:"type"` // "room_state"
	Room RoomSnapshot `json:"room"`
}

type GameStateMessage struct {
	Type   string `json:"type"` // "game_state"
	GameID string `json:"game_id"`
	State  any    `json:"state"`
}

type PlayerJoinedMessage struct {
	Type                string                        `json:"type"` // "player_joined" or "player_rejoined"
	PlayerID            string                        `json:"player_id"`
	PlayerName          string                        `json:"player_name"`
	OldPlayerID         string                        `json:"old_player_id,omitempty"`
	Players             map[string]string             `json:"players"`
	HostID              string                        `json:"host_id"`
	DisconnectedPlayers map[string]DisconnectedPlayer `json:"disconnected_players"`
	GameInProgress      bool                          `json:"game_in_progress"`
}

type PlayerLeftMessage struct {
	Type        string            `json:"type"` // "player_left"
	PlayerID    string            `json:"player_id"`
	PlayerName  string            `json:"player_name"`
	Players     map[string]string `json:"players"`
	HostChanged bool              `json:"host_changed"`
	NewHostID   string            `json:"new_host_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

type PlayerDisconnectedMessage struct {
	Type                string                        `json:"type"` // "player_disconnected"
	PlayerID            string                        `json:"player_id"`
	Players             map[string]string             `json:"players"`
	DisconnectedPlayers map[string]DisconnectedPlayer `json:"disconnected_players"`
	HostID              string                        `json:"host_id"`
}

type NicknameUpdatedMessage struct {
	Type        string            `json:"type"` // "nickname_updated"
	PlayerID    string            `json:"player_id"`
	OldNickname string            `json:"old_nickname"`
	NewNickname string            `json:"new_nickname"`
	Players     map[string]string `json:"players"`
}

type GameSelectedMessage struct {
	Type     string   `json:"type"` // "game_selected"
	GameID   string   `json:"game_id"`
	GameInfo GameInfo `json:"game_info"`
}

type GameStartedMessage struct {
	Type   string `json:"type"` // "game_started"
	GameID string `json:"game_id"`
	State  any    `json:"state"`
}

type GameEndedMessage struct {
	Type    string `json:"type"` // "game_ended"
	Message string `json:"message"`
}

type RoomClosedMessage struct {
	Type   string `json:"type"` // "room_closed"
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newErrorMessage(err error) ErrorMessage {
	kind := errorKind(err)

	msg := err.Error()
	if kind == "internal" {
		msg = "an internal error occurred"
	}

	return ErrorMessage{Type: "error", Kind: kind, Message: msg}
}

// Gateway turns channel events into room operations and fans the results out
// to the room's subscribers.
type Gateway struct {
	rooms    *Registry
	channels *Channels
	sessions *Sessions
	games    *Catalog
	logger   zerolog.Logger
}

func NewGateway(rooms *Registry, channels *Channels, sessions *Sessions, games *Catalog, logger zerolog.Logger) *Gateway {
	return &Gateway{
		rooms:    rooms,
		channels: channels,
		sessions: sessions,
		games:    games,
		logger:   logger,
	}
}

// Connect subscribes c to its room and sends it the current state.
func (g *Gateway) Connect(c *Client) error {
	room, err := g.rooms.Lookup(c.code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.active {
		return ErrRoomClosed
	}

	id, _ := c.Identity()
	if id.RoomCode != c.code {
		id = Identity{}
	}

	_, member := room.players[id.PlayerID]
	c.bind(id, member && !id.empty())

	g.channels.subscribe(c.code, c)

	c.deliver(SessionInfoMessage{
		Type:       "session_info",
		RoomCode:   c.code,
		PlayerID:   id.PlayerID,
		PlayerName: id.PlayerName,
		IsMember:   member,
		IsHost:     member && room.hostID == id.PlayerID,
	})
	g.sendStateLocked(c, room)

	g.logger.Debug().Str("room", c.code).Str("player", id.PlayerID).Msg("ROOMS: Connection subscribed")

	return nil
}

// Dispatch handles one inbound event. Failures are reported to c alone.
func (g *Gateway) Dispatch(c *Client, msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("event", msg.Type).Str("room", c.code).Msg("ROOMS: Recovered from handler panic")
			c.deliver(newErrorMessage(fmt.Errorf("panic: %v", r)))
		}
	}()

	var err error

	switch msg.Type {
	case "join_room":
		err = g.join(c, msg)
	case "leave_room":
		err = g.leave(c, msg)
	case "update_nickname":
		err = g.rename(c, msg)
	case "select_game":
		err = g.selectGame(c, msg)
	case "start_game":
		err = g.startGame(c, msg)
	case "game_action":
		err = g.gameAction(c, msg)
	case "end_game":
		err = g.endGame(c, msg)
	case "sync":
		err = g.sync(c, msg)
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrMalformed, msg.Type)
	}

	if err != nil {
		g.logger.Debug().Err(err).Str("event", msg.Type).Str("room", c.code).Msg("ROOMS: Rejected event")
		c.deliver(newErrorMessage(err))
	}
}

// Disconnect handles a closed connection. The player is only marked
// disconnected once their last connection to the room is gone.
func (g *Gateway) Disconnect(c *Client) {
	g.channels.unsubscribe(c.code, c)

	id, joined := c.Identity()
	if !joined {
		return
	}

	room, ok := g.rooms.Get(c.code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(g.channels.playerConnections(c.code, id.PlayerID)) > 0 {
		return
	}

	out, err := room.markDisconnectedLocked(id.PlayerID)
	if err != nil {
		return
	}

	g.logger.Info().Str("room", c.code).Str("player", id.PlayerID).Msg("ROOMS: Player disconnected")

	g.channels.broadcast(c.code, PlayerDisconnectedMessage{
		Type:                "player_disconnected",
		PlayerID:            id.PlayerID,
		Players:             room.playersLocked(),
		DisconnectedPlayers: room.disconnectedLocked(),
		HostID:              room.hostID,
	})
	g.channels.broadcast(c.code, out.Events...)
}

func (g *Gateway) roomFor(c *Client, msg ClientMessage) (*Room, error) {
	if msg.RoomCode != "" && NormalizeRoomCode(msg.RoomCode) != c.code {
		return nil, fmt.Errorf("%w: this connection belongs to room %s", ErrForbidden, c.code)
	}

	return g.rooms.Lookup(c.code)
}

// actor resolves the player behind c, rejecting payloads that claim to be
// somebody else.
func (g *Gateway) actor(c *Client, msg ClientMessage) (Identity, error) {
	id, joined := c.Identity()
	if !joined {
		return Identity{}, fmt.Errorf("%w: join the room first", ErrForbidden)
	}

	if msg.PlayerID != "" && msg.PlayerID != id.PlayerID {
		return Identity{}, fmt.Errorf("%w: player id does not match this connection", ErrForbidden)
	}

	return id, nil
}

func (g *Gateway) sendStateLocked(c *Client, room *Room) {
	c.deliver(RoomStateMessage{Type: "room_state", Room: room.snapshotLocked()})

	if room.game != nil {
		c.deliver(GameStateMessage{Type: "game_state", GameID: room.game.GameID(), State: room.game.View()})
	}
}

func (g *Gateway) joinedMessageLocked(kind string, room *Room, id Identity, oldID string) PlayerJoinedMessage {
	return PlayerJoinedMessage{
		Type:                kind,
		PlayerID:            id.PlayerID,
		PlayerName:          id.PlayerName,
		OldPlayerID:         oldID,
		Players:             room.playersLocked(),
		HostID:              room.hostID,
		DisconnectedPlayers: room.disconnectedLocked(),
		GameInProgress:      room.game != nil,
	}
}

// bindPlayer attaches id to every live connection of that player, including c.
func (g *Gateway) bindPlayer(c *Client, id Identity) {
	c.bind(id, true)

	for _, other := range g.channels.playerConnections(c.code, id.PlayerID) {
		other.bind(id, true)
		if other.token != "" {
			g.sessions.Update(other.token, id)
		}
	}

	if c.token != "" {
		g.sessions.Update(c.token, id)
	}
}

func (g *Gateway) join(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.active {
		return ErrRoomClosed
	}

	id, _ := c.Identity()
	name := strings.TrimSpace(msg.PlayerName)

	if id.empty() {
		if name == "" {
			return ErrIncomplete
		}

		pid := msg.PlayerID
		if _, taken := room.players[pid]; taken {
			return fmt.Errorf("%w: that player is already connected", ErrForbidden)
		}

		if pid == "" {
			pid = uuid.NewString()
		}

		id = Identity{PlayerID: pid, PlayerName: name, RoomCode: c.code}
	} else if msg.PlayerID != "" && msg.PlayerID != id.PlayerID {
		return fmt.Errorf("%w: player id does not match this connection", ErrForbidden)
	}

	if p, ok := room.players[id.PlayerID]; ok {
		id.PlayerName = p.Name
		c.bind(id, true)
		g.sendStateLocked(c, room)

		return nil
	}

	if d, ok := room.disconnected[id.PlayerID]; ok {
		name = d.Name
	} else if name == "" {
		name = id.PlayerName
	}

	if _, ok := room.disconnectedByNameLocked(name); ok {
		oldID, err := room.reconnectPlayerLocked(id.PlayerID, id.PlayerID, name)
		if err != nil {
			return err
		}

		id.PlayerName = name
		g.bindPlayer(c, id)

		g.logger.Info().Str("room", c.code).Str("player", id.PlayerID).Str("name", name).Msg("ROOMS: Player rejoined")

		g.channels.broadcast(c.code, g.joinedMessageLocked("player_rejoined", room, id, oldID))
		if room.game != nil {
			c.deliver(GameStateMessage{Type: "game_state", GameID: room.game.GameID(), State: room.game.View()})
		}

		return nil
	}

	if err := room.addPlayerLocked(id.PlayerID, name); err != nil {
		return err
	}

	id.PlayerName = name
	g.bindPlayer(c, id)

	g.logger.Info().Str("room", c.code).Str("player", id.PlayerID).Str("name", name).Msg("ROOMS: Player joined")

	g.channels.broadcast(c.code, g.joinedMessageLocked("player_joined", room, id, ""))
	if room.game != nil {
		c.deliver(GameStateMessage{Type: "game_state", GameID: room.game.GameID(), State: room.game.View()})
	}

	return nil
}

func (g *Gateway) leave(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := g.removeLocked(room, id); err != nil {
		return err
	}
	c.setJoined(false)

	return nil
}

// Leave removes the player behind id from their room outside of any channel
// connection, as the exit page does.
func (g *Gateway) Leave(id Identity) error {
	room, err := g.rooms.Lookup(id.RoomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	return g.removeLocked(room, id)
}

func (g *Gateway) removeLocked(room *Room, id Identity) error {
	name := id.PlayerName
	if p, ok := room.players[id.PlayerID]; ok {
		name = p.Name
	} else if d, ok := room.disconnected[id.PlayerID]; ok {
		name = d.Name
	}

	out, err := room.removePlayerLocked(id.PlayerID)
	if err != nil {
		return err
	}

	for _, other := range g.channels.playerConnections(room.code, id.PlayerID) {
		other.setJoined(false)
	}

	g.logger.Info().Str("room", room.code).Str("player", id.PlayerID).Msg("ROOMS: Player left")

	if out.Closed {
		g.logger.Info().Str("room", room.code).Msg("ROOMS: Room closed")
		g.channels.closeRoom(room.code, RoomClosedMessage{Type: "room_closed", Reason: "All players have left the room"})

		return nil
	}

	g.channels.broadcast(room.code, PlayerLeftMessage{
		Type:        "player_left",
		PlayerID:    id.PlayerID,
		PlayerName:  name,
		Players:     room.playersLocked(),
		HostChanged: out.HostChanged,
		NewHostID:   out.NewHostID,
	})
	g.channels.broadcast(room.code, out.Events...)

	return nil
}

func (g *Gateway) rename(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.NewNickname)
	if name == "" {
		return ErrIncomplete
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	old, err := room.updatePlayerNameLocked(id.PlayerID, name)
	if err != nil {
		return err
	}

	id.PlayerName = name
	g.bindPlayer(c, id)

	g.channels.broadcast(c.code, NicknameUpdatedMessage{
		Type:        "nickname_updated",
		PlayerID:    id.PlayerID,
		OldNickname: old,
		NewNickname: name,
		Players:     room.playersLocked(),
	})

	return nil
}

func (g *Gateway) selectGame(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	if msg.GameID == "" {
		return ErrIncomplete
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.hostID != id.PlayerID {
		return ErrNotHost
	}

	engine, err := g.games.Engine(msg.GameID)
	if err != nil {
		return err
	}

	info := engine.Info()
	if err := room.selectGameLocked(id.PlayerID, info); err != nil {
		return err
	}

	g.logger.Info().Str("room", c.code).Str("game", info.ID).Msg("GAMES: Game selected")

	g.channels.broadcast(c.code, GameSelectedMessage{Type: "game_selected", GameID: info.ID, GameInfo: info})

	return nil
}

func (g *Gateway) startGame(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := room.startSelectedLocked(id.PlayerID, g.games); err != nil {
		return err
	}

	g.logger.Info().Str("room", c.code).Str("game", room.game.GameID()).Int("players", len(room.players)).Msg("GAMES: Game started")

	g.channels.broadcast(c.code, GameStartedMessage{Type: "game_started", GameID: room.game.GameID(), State: room.game.View()})

	return nil
}

func (g *Gateway) gameAction(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	if msg.Action == "" {
		return ErrIncomplete
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	events, err := room.applyActionLocked(id.PlayerID, msg.action())
	if err != nil {
		return err
	}

	g.channels.broadcast(c.code, events...)

	for _, e := range events {
		if over, ok := e.(GameOverMessage); ok {
			g.logger.Info().Str("room", c.code).Strs("winners", over.Winners).Msg("GAMES: Game finished")
		}
	}

	return nil
}

func (g *Gateway) endGame(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	id, err := g.actor(c, msg)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.hostID != id.PlayerID {
		return ErrNotHost
	}

	room.endGameLocked()

	g.logger.Info().Str("room", c.code).Msg("GAMES: Game ended by host")

	g.channels.broadcast(c.code, GameEndedMessage{Type: "game_ended", Message: "The host ended the game"})

	return nil
}

// sync resends the room and game state to c alone.
func (g *Gateway) sync(c *Client, msg ClientMessage) error {
	room, err := g.roomFor(c, msg)
	if err != nil {
		return err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.active {
		return ErrRoomClosed
	}

	g.sendStateLocked(c, room)

	return nil
}
