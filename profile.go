/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

type roomDebug struct {
	Snapshot    RoomSnapshot `json:"snapshot"`
	Subscribers int          `json:"subscribers"`
}

func (s *Server) serveRoomDebug() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		rooms := s.rooms.Rooms()

		out := make([]roomDebug, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, roomDebug{
				Snapshot:    room.Snapshot(),
				Subscribers: s.channels.count(room.Code()),
			})
		}

		s.writeJSON(w, http.StatusOK, map[string]any{
			"rooms":    out,
			"sessions": s.sessions.Len(),
		})
	}
}

func (s *Server) registerProfileHandlers(mux *httprouter.Router) {
	prefix := s.cfg.prefix

	mux.GET(prefix+"/debug/rooms", s.serveRoomDebug())

	mux.Handler("GET", prefix+"/pprof/allocs", pprof.Handler("allocs"))
	mux.Handler("GET", prefix+"/pprof/block", pprof.Handler("block"))
	mux.Handler("GET", prefix+"/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handler("GET", prefix+"/pprof/heap", pprof.Handler("heap"))
	mux.Handler("GET", prefix+"/pprof/mutex", pprof.Handler("mutex"))
	mux.Handler("GET", prefix+"/pprof/threadcreate", pprof.Handler("threadcreate"))
	mux.HandlerFunc("GET", prefix+"/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", prefix+"/pprof/profile", pprof.Profile)
	mux.HandlerFunc("GET", prefix+"/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", prefix+"/pprof/trace", pprof.Trace)
}
