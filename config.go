package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	eventBurst    int
	eventRate     float64
	maxRooms      int
	playerTimeout time.Duration
	port          int
	prefix        string
	profile       bool
	questions     string
	reapInterval  time.Duration
	roomTimeout   time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roomTimeout <= 0 || c.playerTimeout <= 0 || c.reapInterval <= 0 {
		return errors.New("--room-timeout, --player-timeout and --reap-interval must be positive")
	}
	if c.maxRooms < 1 || int64(c.maxRooms) > roomCodeSpace {
		return fmt.Errorf("invalid room limit (must be between 1-%d inclusive): %d", int64(roomCodeSpace), c.maxRooms)
	}
	if c.eventRate <= 0 || c.eventBurst < 1 {
		return errors.New("--event-rate must be positive and --event-burst at least 1")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyroom",
		Short:         "Party game rooms for a shared TV screen and phone controllers.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYROOM_BIND)")
	fs.IntVar(&cfg.eventBurst, "event-burst", 40, "channel events a single connection may send in a burst (env: PARTYROOM_EVENT_BURST)")
	fs.Float64Var(&cfg.eventRate, "event-rate", 20, "sustained channel events per second allowed per connection (env: PARTYROOM_EVENT_RATE)")
	fs.IntVar(&cfg.maxRooms, "max-rooms", 10000, "maximum number of concurrently open rooms (env: PARTYROOM_MAX_ROOMS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 5*time.Minute, "time before disconnected players are removed from their room (env: PARTYROOM_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYROOM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYROOM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof and room debug handlers (env: PARTYROOM_PROFILE)")
	fs.StringVar(&cfg.questions, "questions", "", "path to a JSON trivia question bank (env: PARTYROOM_QUESTIONS)")
	fs.DurationVar(&cfg.reapInterval, "reap-interval", time.Minute, "time between cleanup passes over rooms and players (env: PARTYROOM_REAP_INTERVAL)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 120*time.Minute, "time before idle rooms are closed (env: PARTYROOM_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYROOM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYROOM_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYROOM_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYROOM_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyroom v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
