// Package gamed parses gamed command flags and starts the game runtime.
package gamed

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/spinout/internal/app/gamed"
	entrypoint "github.com/louisbranch/spinout/internal/platform/cmd"
)

// Config holds gamed command configuration.
type Config struct {
	DBPath         string        `env:"SPINOUT_DB_PATH" envDefault:"data/spinout.db"`
	DiscordToken   string        `env:"SPINOUT_DISCORD_TOKEN"`
	LobbyCountdown time.Duration `env:"SPINOUT_LOBBY_COUNTDOWN"`
	LockTTL        time.Duration `env:"SPINOUT_LOCK_TTL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the session database file")
	fs.StringVar(&cfg.DiscordToken, "discord-token", cfg.DiscordToken, "Discord bot token (empty disables the presenter)")
	fs.DurationVar(&cfg.LobbyCountdown, "lobby-countdown", cfg.LobbyCountdown, "How long lobbies stay open before auto-start")
	fs.DurationVar(&cfg.LockTTL, "lock-ttl", cfg.LockTTL, "Advisory session lock lease duration")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game runtime service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGamed, func(ctx context.Context) error {
		return gamed.Run(ctx, gamed.RuntimeConfig{
			DBPath:         cfg.DBPath,
			DiscordToken:   cfg.DiscordToken,
			LobbyCountdown: cfg.LobbyCountdown,
			LockTTL:        cfg.LockTTL,
		})
	})
}
