package gamed

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/spinout/internal/economy"
	"github.com/louisbranch/spinout/internal/game/cancel"
	"github.com/louisbranch/spinout/internal/game/engine"
	"github.com/louisbranch/spinout/internal/game/lock"
	"github.com/louisbranch/spinout/internal/game/reward"
	"github.com/louisbranch/spinout/internal/game/service"
	"github.com/louisbranch/spinout/internal/platform/timeouts"
	"github.com/louisbranch/spinout/internal/presenter"
	"github.com/louisbranch/spinout/internal/presenter/discord"
	"github.com/louisbranch/spinout/internal/storage/bbolt"
)

// RuntimeConfig controls game runtime startup and dependencies.
type RuntimeConfig struct {
	DBPath         string
	DiscordToken   string
	LobbyCountdown time.Duration
	LockTTL        time.Duration
}

const defaultGameDB = "data/spinout.db"

// Run starts the game runtime: storage, services, the Discord presenter
// when a token is configured, and the crash-recovery scan. It blocks
// until ctx is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultGameDB
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = timeouts.SessionLock
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := bbolt.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close session store: %v", closeErr)
		}
	}()

	var present presenter.Presenter
	if strings.TrimSpace(cfg.DiscordToken) != "" {
		dp, err := discord.New(cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("create discord presenter: %w", err)
		}
		if err := dp.Open(); err != nil {
			return fmt.Errorf("open discord gateway: %w", err)
		}
		defer func() {
			if closeErr := dp.Close(); closeErr != nil {
				log.Printf("close discord gateway: %v", closeErr)
			}
		}()
		present = dp
	}

	locks := lock.NewManager(cfg.LockTTL)
	sessions := service.NewService(service.Stores{Sessions: store, Events: store}, locks)
	wallet := economy.NewMemoryWallet()
	eng := engine.New(sessions, reward.NewService(wallet), wallet, present)
	canceller := cancel.NewService(eng, sessions, present)
	app := New(sessions, eng, canceller, present, cfg.LobbyCountdown)

	if err := app.Recover(ctx); err != nil {
		return fmt.Errorf("recover persisted sessions: %w", err)
	}

	log.Printf("game runtime started db=%s discord=%t", cfg.DBPath, present != nil)
	<-ctx.Done()

	app.Shutdown()
	log.Printf("game runtime stopped")
	return nil
}
