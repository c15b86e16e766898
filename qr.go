/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the address a phone should open to join code.
func (s *Server) joinURL(r *http.Request, code string) string {
	scheme := s.cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + s.cfg.prefix + "/join?code=" + code
}

func (s *Server) serveQR() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := NormalizeRoomCode(p.ByName("code"))
		if !s.rooms.Exists(code) {
			http.NotFound(w, r)

			return
		}

		png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		if _, err := w.Write(png); err != nil {
			s.errs <- err
		}
	}
}
