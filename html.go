/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"embed"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed assets/*
var assets embed.FS

func getFavicon(prefix string) string {
	return `<link rel="icon" type="image/svg+xml" href="` + prefix + `/favicon.svg">
	<meta name="theme-color" content="#1d1b3a">
	<meta name="viewport" content="width=device-width, initial-scale=1">`
}

func writeHTML(s *Server, w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(s.cfg, w)
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.errs <- err
	}
}

func (s *Server) homePage(code, name, notice string) string {
	var b strings.Builder

	p := s.cfg.prefix

	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(getFavicon(p))
	b.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/app.css">`, p))
	b.WriteString(`<title>partyroom</title></head><body><main class="home">`)
	b.WriteString(`<h1>partyroom</h1>`)

	if notice != "" {
		b.WriteString(fmt.Sprintf(`<p class="notice">%s</p>`, html.EscapeString(notice)))
	}

	b.WriteString(fmt.Sprintf(`<form method="post" action="%s/create"><h2>Host a room</h2>`, p))
	b.WriteString(fmt.Sprintf(`<input name="player_name" maxlength="24" placeholder="Your name" value="%s" required>`, html.EscapeString(name)))
	b.WriteString(`<button type="submit">Create room</button></form>`)

	b.WriteString(fmt.Sprintf(`<form method="post" action="%s/join"><h2>Join a room</h2>`, p))
	b.WriteString(fmt.Sprintf(`<input name="room_code" maxlength="%d" placeholder="Room code" value="%s" autocapitalize="characters" required>`,
		roomCodeLength, html.EscapeString(code)))
	b.WriteString(fmt.Sprintf(`<input name="player_name" maxlength="24" placeholder="Your name" value="%s" required>`, html.EscapeString(name)))
	b.WriteString(`<button type="submit">Join</button></form>`)

	b.WriteString(fmt.Sprintf(`<p class="tv">Showing the game on a big screen? Open <code>%s/tv/display/CODE</code> there.</p>`, p))
	b.WriteString(`</main></body></html>`)

	return b.String()
}

func (s *Server) serveHomePage() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		q := r.URL.Query()

		writeHTML(s, w, http.StatusOK, s.homePage(NormalizeRoomCode(q.Get("code")), "", q.Get("notice")))
	}
}

func (s *Server) serveRoomPage(file string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := NormalizeRoomCode(p.ByName("code"))

		room, ok := s.rooms.Get(code)
		if !ok {
			writeHTML(s, w, http.StatusNotFound, newPage(s.cfg.prefix, "Room Not Found", "That room does not exist. Start over?"))

			return
		}

		if !room.Active() {
			writeHTML(s, w, http.StatusGone, newPage(s.cfg.prefix, "Room Closed", "That room has closed. Start over?"))

			return
		}

		data, err := assets.ReadFile("assets/" + file)
		if err != nil {
			s.errs <- err

			return
		}

		writeHTML(s, w, http.StatusOK, string(data))
	}
}

func (s *Server) serveTVPage() httprouter.Handle {
	return s.serveRoomPage("tv.html")
}

// serveMobilePage requires a session for the room, sending everyone else to
// the join form.
func (s *Server) serveMobilePage() httprouter.Handle {
	page := s.serveRoomPage("mobile.html")

	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := NormalizeRoomCode(p.ByName("code"))

		id, ok := s.sessions.Lookup(sessionToken(r))
		if !ok || id.RoomCode != code {
			http.Redirect(w, r, s.cfg.prefix+"/join?code="+code, http.StatusSeeOther)

			return
		}

		page(w, r, p)
	}
}

func (s *Server) serveHealthCheck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(s.cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			s.errs <- err

			return
		}
	}
}

func (s *Server) serveAssets() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, s.cfg.prefix), "/")
		if fname == "favicon.svg" {
			fname = "assets/favicon.svg"
		}

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(s.cfg, w)

		switch strings.ToLower(filepath.Ext(fname)) {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		case ".svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		case ".html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}

		_, err = w.Write(data)
		if err != nil {
			s.errs <- err

			return
		}
	}
}

func (s *Server) serveRobots() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /tv/
Disallow: /mobile/
Disallow: /ws/

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(s.cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			s.errs <- err

			return
		}
	}
}
