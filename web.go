/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const timeout time.Duration = 10 * time.Second

// Server bundles the stores the HTTP handlers read from.
type Server struct {
	cfg      *Config
	rooms    *Registry
	sessions *Sessions
	channels *Channels
	gateway  *Gateway
	games    *Catalog
	logger   zerolog.Logger
	errs     chan error
}

func NewServer(cfg *Config, games *Catalog, logger zerolog.Logger) *Server {
	rooms := NewRegistry(cfg.maxRooms)
	sessions := NewSessions()
	channels := NewChannels()

	return &Server{
		cfg:      cfg,
		rooms:    rooms,
		sessions: sessions,
		channels: channels,
		gateway:  NewGateway(rooms, channels, sessions, games, logger),
		games:    games,
		logger:   logger,
		errs:     make(chan error, 64),
	}
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:; img-src 'self' data:")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func (s *Server) serveVersion() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(s.cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("partyroom v" + releaseVersion + "\n"))
		if err != nil {
			s.errs <- err

			return
		}

		s.logger.Debug().Msgf("SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// Router registers every route under the configured prefix.
func (s *Server) Router() *httprouter.Router {
	cfg := s.cfg
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		s.logger.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("SERVE: Recovered from handler panic")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage(cfg.prefix, "Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", s.serveHomePage())
	mux.POST(cfg.prefix+"/create", s.serveCreate())
	mux.GET(cfg.prefix+"/join", s.serveJoinPage())
	mux.POST(cfg.prefix+"/join", s.serveJoin())
	mux.GET(cfg.prefix+"/exit", s.serveExit())

	mux.GET(cfg.prefix+"/tv/display/:code", s.serveTVPage())
	mux.GET(cfg.prefix+"/tv/api/room/:code", s.serveRoomStatus())
	mux.GET(cfg.prefix+"/tv/qr/:code", s.serveQR())

	mux.GET(cfg.prefix+"/mobile/room/:code", s.serveMobilePage())
	mux.GET(cfg.prefix+"/mobile/api/games", s.serveGames())
	mux.GET(cfg.prefix+"/mobile/api/player-info", s.servePlayerInfo())

	mux.GET(cfg.prefix+"/ws/:code", s.serveChannel())

	mux.GET(cfg.prefix+"/assets/*file", s.serveAssets())
	mux.GET(cfg.prefix+"/favicon.svg", s.serveAssets())
	mux.GET(cfg.prefix+"/healthz", s.serveHealthCheck())
	mux.GET(cfg.prefix+"/robots.txt", s.serveRobots())
	mux.GET(cfg.prefix+"/version", s.serveVersion())

	if cfg.profile {
		s.registerProfileHandlers(mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logger := newLogger(cfg, os.Stdout)

	bank, err := loadQuestions(cfg.questions)
	if err != nil {
		return err
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	s := NewServer(cfg, defaultCatalog(bank, defaultWords), logger)

	logger.Info().Msgf("START: partyroom v%s", releaseVersion)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           s.Router(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		for err := range s.errs {
			logger.Warn().Err(err).Msg("SERVE: Failed to write response")
		}
	}()

	reaper := NewReaper(cfg, s.rooms, s.channels, s.sessions, logger)
	go reaper.Run(ctx)

	listenErr := make(chan error, 1)

	go func() {
		var err error
		logger.Info().Msgf("SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	for _, room := range s.rooms.Rooms() {
		s.channels.closeRoom(room.Code(), RoomClosedMessage{Type: "room_closed", Reason: "The server is shutting down"})
	}

	return nil
}
