// Package shell composes the browser shell: event bus, stores, omnibox,
// chat pipeline, and the surface reconciler, wired over one state database.
package shell

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bnema/marlin/internal/ai"
	"github.com/bnema/marlin/internal/config"
	"github.com/bnema/marlin/internal/event"
	"github.com/bnema/marlin/internal/ident"
	"github.com/bnema/marlin/internal/infrastructure/persistence/sqlite"
	"github.com/bnema/marlin/internal/logging"
	"github.com/bnema/marlin/internal/shell/chat"
	"github.com/bnema/marlin/internal/shell/ntp"
	"github.com/bnema/marlin/internal/shell/omnibox"
	"github.com/bnema/marlin/internal/shell/reconciler"
	"github.com/bnema/marlin/internal/shell/tabs"
)

// Shell is the composed client-side state model. The rendering layer plugs
// in through Attach; everything else is ready after New.
type Shell struct {
	Bus     *event.Bus
	Tabs    *tabs.Store
	Omnibox *omnibox.Controller
	Chat    *chat.Store
	NTP     *ntp.Store

	db         *sql.DB
	reconciler *reconciler.Reconciler
}

// Options tunes composition beyond the config file. Extractor may be nil.
type Options struct {
	Config    *config.Config
	Extractor chat.Extractor
}

// New builds the shell: opens the state database, constructs the stores
// (each restoring its persisted snapshot), and wires the AI provider. A
// missing AI credential is not fatal; chat degrades to a notice.
func New(ctx context.Context, opts Options) (*Shell, error) {
	cfg := opts.Config
	log := logging.FromContext(ctx)

	db, err := sqlite.NewConnection(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	repo := sqlite.NewStateRepository(db)

	bus := event.NewBus()
	ids := ident.NewGenerator()

	tabStore := tabs.NewStore(ctx, tabs.Config{Bus: bus, IDs: ids, Repo: repo})
	ntpStore := ntp.NewStore(ctx, ntp.Config{Bus: bus, IDs: ids, Repo: repo})

	omni := omnibox.NewController(ctx, omnibox.Config{
		Bus:          bus,
		Tabs:         tabStore,
		SearchEngine: cfg.Search.Engine,
		Shortcuts:    cfg.Search.Shortcuts,
		Favorites:    ntpStore,
	})

	var provider ai.Provider
	if cfg.AI.Provider != "" {
		provider, err = ai.NewProvider(ai.Config{
			Type:    ai.ProviderType(cfg.AI.Provider),
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			APIKey:  cfg.AI.APIKey,
		})
		if err != nil {
			if !errors.Is(err, ai.ErrNoCredential) {
				sqlite.Close(db)
				return nil, fmt.Errorf("failed to configure ai provider: %w", err)
			}
			log.Info().Msg("no ai credential configured, chat runs without a provider")
			provider = nil
		}
	}

	chatStore := chat.NewStore(ctx, chat.Config{
		Bus:       bus,
		IDs:       ids,
		Repo:      repo,
		Tabs:      tabStore,
		Provider:  provider,
		Extractor: opts.Extractor,
		Params: chat.Params{
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		},
	})

	ntpStore.RegisterWidget(ntp.ClockWidget(nil))
	ntpStore.RegisterWidget(ntp.RecentConversationsWidget(chatStore))

	return &Shell{
		Bus:     bus,
		Tabs:    tabStore,
		Omnibox: omni,
		Chat:    chatStore,
		NTP:     ntpStore,
		db:      db,
	}, nil
}

// Attach wires a surface factory and forces an initial render, giving
// restored tabs their surfaces.
func (s *Shell) Attach(ctx context.Context, factory reconciler.SurfaceFactory) *reconciler.Reconciler {
	s.reconciler = reconciler.New(ctx, s.Bus, s.Tabs, factory)
	s.reconciler.Render()
	return s.reconciler
}

// Close releases the state database.
func (s *Shell) Close() error {
	return sqlite.Close(s.db)
}
