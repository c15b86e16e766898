/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

type RoomStatus struct {
	Exists bool          `json:"exists"`
	Room   *RoomSnapshot `json:"room,omitempty"`
}

type PlayerInfo struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	RoomCode   string `json:"room_code"`
	IsMember   bool   `json:"is_member"`
	IsHost     bool   `json:"is_host"`
	Connected  bool   `json:"connected"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(s.cfg, w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.errs <- err
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, errorStatus(err), errorResponse{Kind: errorKind(err), Message: err.Error()})
}

func (s *Server) serveRoomStatus() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		room, ok := s.rooms.Get(p.ByName("code"))
		if !ok {
			s.writeJSON(w, http.StatusNotFound, RoomStatus{})

			return
		}

		snap := room.Snapshot()

		s.writeJSON(w, http.StatusOK, RoomStatus{Exists: true, Room: &snap})
	}
}

func (s *Server) serveGames() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.writeJSON(w, http.StatusOK, map[string]any{"games": s.games.List()})
	}
}

func (s *Server) servePlayerInfo() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, ok := s.sessions.Lookup(sessionToken(r))
		if !ok {
			s.writeError(w, fmt.Errorf("%w: no active session", ErrForbidden))

			return
		}

		info := PlayerInfo{PlayerID: id.PlayerID, PlayerName: id.PlayerName, RoomCode: id.RoomCode}

		if room, ok := s.rooms.Get(id.RoomCode); ok {
			room.mu.Lock()
			if p, ok := room.players[id.PlayerID]; ok {
				info.PlayerName = p.Name
				info.IsMember = true
				info.Connected = true
				info.IsHost = room.hostID == id.PlayerID
			} else if d, ok := room.disconnected[id.PlayerID]; ok {
				info.PlayerName = d.Name
				info.IsMember = true
			}
			room.mu.Unlock()
		}

		s.writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) serveCreate() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		name := strings.TrimSpace(r.PostFormValue("player_name"))
		if name == "" {
			writeHTML(s, w, http.StatusBadRequest, s.homePage("", "", "Enter your name to host a room."))

			return
		}

		id := Identity{PlayerID: uuid.NewString(), PlayerName: name}

		room, err := s.rooms.Create(id.PlayerID, name)
		if err != nil {
			writeHTML(s, w, errorStatus(err), s.homePage("", name, err.Error()))

			return
		}
		id.RoomCode = room.Code()

		if err := s.startSession(w, r, id); err != nil {
			room.Close()
			writeHTML(s, w, http.StatusInternalServerError, newPage(s.cfg.prefix, "Server Error", "An error has occurred. Please try again."))

			return
		}

		s.logger.Info().Str("room", id.RoomCode).Str("host", id.PlayerID).Str("ip", realIP(r)).Msg("ROOMS: Created room")

		http.Redirect(w, r, s.cfg.prefix+"/mobile/room/"+id.RoomCode, http.StatusSeeOther)
	}
}

func (s *Server) serveJoinPage() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := NormalizeRoomCode(r.URL.Query().Get("code"))
		if code == "" {
			writeHTML(s, w, http.StatusOK, s.homePage("", "", ""))

			return
		}

		if !s.rooms.Exists(code) {
			writeHTML(s, w, http.StatusNotFound, s.homePage("", "", "Room "+code+" does not exist."))

			return
		}

		if id, ok := s.sessions.Lookup(sessionToken(r)); ok && id.RoomCode == code {
			http.Redirect(w, r, s.cfg.prefix+"/mobile/room/"+code, http.StatusSeeOther)

			return
		}

		writeHTML(s, w, http.StatusOK, s.homePage(code, "", ""))
	}
}

// serveJoin checks that the player could take a seat and hands out a session.
// The seat itself is taken when the phone joins over the channel.
func (s *Server) serveJoin() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := NormalizeRoomCode(r.PostFormValue("room_code"))
		name := strings.TrimSpace(r.PostFormValue("player_name"))

		if code == "" || name == "" {
			writeHTML(s, w, http.StatusBadRequest, s.homePage(code, name, "Enter a room code and your name."))

			return
		}

		if !ValidRoomCode(code) {
			writeHTML(s, w, http.StatusBadRequest, s.homePage("", name, fmt.Sprintf("Room codes are %d letters or digits.", roomCodeLength)))

			return
		}

		room, ok := s.rooms.Get(code)
		if !ok {
			writeHTML(s, w, http.StatusNotFound, s.homePage("", name, "Room "+code+" does not exist."))

			return
		}

		if err := room.Admit(name); err != nil {
			writeHTML(s, w, errorStatus(err), s.homePage(code, name, err.Error()))

			return
		}

		id := Identity{PlayerID: uuid.NewString(), PlayerName: name, RoomCode: code}
		if prev, ok := s.sessions.Lookup(sessionToken(r)); ok && prev.RoomCode == code && prev.PlayerName == name {
			id.PlayerID = prev.PlayerID
		}

		if err := s.startSession(w, r, id); err != nil {
			writeHTML(s, w, http.StatusInternalServerError, newPage(s.cfg.prefix, "Server Error", "An error has occurred. Please try again."))

			return
		}

		s.logger.Debug().Str("room", code).Str("player", id.PlayerID).Str("ip", realIP(r)).Msg("ROOMS: Issued join session")

		http.Redirect(w, r, s.cfg.prefix+"/mobile/room/"+code, http.StatusSeeOther)
	}
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id Identity) error {
	token, err := s.sessions.Issue(id)
	if err != nil {
		return err
	}

	s.sessions.Revoke(sessionToken(r))
	setSessionCookie(s.cfg, w, token)

	return nil
}

func (s *Server) serveExit() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		token := sessionToken(r)

		if id, ok := s.sessions.Lookup(token); ok {
			if err := s.gateway.Leave(id); err != nil && !errors.Is(err, ErrNotFound) {
				s.logger.Warn().Err(err).Str("room", id.RoomCode).Msg("ROOMS: Exit failed")
			}
		}

		s.sessions.Revoke(token)
		clearSessionCookie(s.cfg, w)

		http.Redirect(w, r, s.cfg.prefix+"/", http.StatusSeeOther)
	}
}

func (s *Server) serveChannel() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := NormalizeRoomCode(p.ByName("code"))
		if !s.rooms.Exists(code) {
			http.Error(w, "room not found", http.StatusNotFound)

			return
		}

		token := sessionToken(r)
		id, _ := s.sessions.Lookup(token)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug().Err(err).Str("ip", realIP(r)).Msg("SERVE: Upgrade failed")

			return
		}

		client := newClient(conn, code, token, id,
			rate.NewLimiter(rate.Limit(s.cfg.eventRate), s.cfg.eventBurst))

		if err := s.gateway.Connect(client); err != nil {
			_ = conn.WriteJSON(newErrorMessage(err))
			_ = conn.Close()

			return
		}

		go client.writePump()
		client.readPump(s.gateway)
	}
}
