// Package rss polls the subscribed feeds and posts new entries to their
// channels.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
	"relaybot/internal/fetch"
	"relaybot/internal/store"
)

// Manager refreshes all stored feeds on a fixed interval. Feed failures are
// logged and skipped; one broken feed never stops the others.
type Manager struct {
	bus      *bus.Bus
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
}

func NewManager(b *bus.Bus, s *store.Store, logger *slog.Logger, interval time.Duration) *Manager {
	return &Manager{
		bus:      b,
		store:    s,
		logger:   logger,
		interval: interval,
	}
}

func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("rss manager started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("rss manager stopping")
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Manager) refresh(ctx context.Context) {
	feeds, err := m.store.AllFeeds(ctx)
	if err != nil {
		m.logger.Error("loading feeds failed", "error", err)
		return
	}

	for _, f := range feeds {
		parsed, err := Fetch(ctx, f.URL)
		if err != nil {
			m.logger.Warn("feed refresh failed", "url", f.URL, "error", err)
			continue
		}
		m.postNew(ctx, f, parsed)
	}
}

func (m *Manager) postNew(ctx context.Context, f store.Feed, parsed *gofeed.Feed) {
	title := f.Title
	if title == "" {
		title = parsed.Title
	}

	for _, item := range parsed.Items {
		fresh, err := m.store.MarkPosted(ctx, f.ID, EntryGUID(item))
		if err != nil {
			m.logger.Error("recording feed entry failed", "url", f.URL, "error", err)
			continue
		}
		if !fresh {
			continue
		}
		m.bus.SubmitAction(domain.Action{
			Target: f.Target,
			Kind:   domain.ActionSay,
			Text:   fmt.Sprintf("%s: %s %s", title, item.Title, item.Link),
		})
	}
}

// Fetch retrieves and parses one feed with the shared HTTP client.
func Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = fetch.SharedClient()
	return parser.ParseURLWithContext(url, ctx)
}

// EntryGUID picks the stable identity of a feed entry for deduplication.
func EntryGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return item.Title
}
