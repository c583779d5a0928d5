package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ohq-tools/ohqtui/internal/cache"
	"github.com/ohq-tools/ohqtui/internal/config"
	"github.com/ohq-tools/ohqtui/internal/live"
	"github.com/ohq-tools/ohqtui/internal/ohq"
	"github.com/ohq-tools/ohqtui/internal/prefs"
	"github.com/ohq-tools/ohqtui/internal/session"
	"github.com/ohq-tools/ohqtui/internal/syncer"
	"github.com/ohq-tools/ohqtui/internal/ui"
)

// Options configure the ohqtui application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/ohqtui/prefs.toml
}

// Run boots the TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userPrefs := prefs.Load(opts.PrefsPath)

	client, err := ohq.NewClient(cfg.Server, cfg.Token)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		return fmt.Errorf("derive websocket url: %w", err)
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	push := live.NewClient(wsURL, header)

	store := cache.New()
	controller := syncer.New(store, push)
	defer controller.Close()

	sess := session.New(client, store, controller, cfg.CourseID)

	// Identify the user before the UI starts: role selection (student
	// vs staff view) depends on it, and an auth failure here is fatal.
	if _, err := sess.Login(ctx); err != nil {
		if ohq.IsAuthorization(err) {
			return fmt.Errorf("not authorized for course %d: %w", cfg.CourseID, err)
		}
		return fmt.Errorf("fetch profile: %w", err)
	}

	// Prime the queue list so the first frame has data.
	if _, err := sess.Queues().Get(ctx); err != nil {
		return fmt.Errorf("fetch queues: %w", err)
	}

	go push.Run(ctx)
	defer push.Close()

	StartFallbackRefresher(ctx, push, controller, defaultFallbackInterval)

	uiOpts := ui.Options{
		Context:   ctx,
		Session:   sess,
		Store:     store,
		Push:      push,
		ThemeName: userPrefs.Theme,
		TagFilter: userPrefs.Tags,
		PrefsPath: opts.PrefsPath,
	}
	return ui.Run(uiOpts)
}
