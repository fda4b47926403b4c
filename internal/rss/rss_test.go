package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
	"relaybot/internal/store"
)

func TestEntryGUIDFallbacks(t *testing.T) {
	tests := []struct {
		item gofeed.Item
		want string
	}{
		{gofeed.Item{GUID: "g", Link: "l", Title: "t"}, "g"},
		{gofeed.Item{Link: "l", Title: "t"}, "l"},
		{gofeed.Item{Title: "t"}, "t"},
	}
	for _, tt := range tests {
		if got := EntryGUID(&tt.item); got != tt.want {
			t.Fatalf("EntryGUID(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>First post</title>
      <link>https://example.org/1</link>
      <guid>entry-1</guid>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.org/2</link>
      <guid>entry-2</guid>
    </item>
  </channel>
</rss>`

func TestRefreshPostsEachEntryOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(10, logger)
	defer b.Close()
	s, err := store.New(filepath.Join(t.TempDir(), "relaybot.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	target := domain.ChannelRef{Network: "irc1", Channel: "#feeds"}
	if _, err := s.AddFeed(ctx, store.Feed{URL: srv.URL, Title: "Test Feed", Target: target}); err != nil {
		t.Fatal(err)
	}

	m := NewManager(b, s, logger, time.Minute)

	m.refresh(ctx)
	for i := 0; i < 2; i++ {
		select {
		case a := <-b.Actions():
			if a.Target != target {
				t.Fatalf("entry announced on wrong target: %+v", a.Target)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 announcements, got %d", i)
		}
	}

	// A second refresh finds nothing new.
	m.refresh(ctx)
	select {
	case a := <-b.Actions():
		t.Fatalf("entry announced twice: %+v", a)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRefreshSurvivesBrokenFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer good.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer broken.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(10, logger)
	defer b.Close()
	s, err := store.New(filepath.Join(t.TempDir(), "relaybot.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	target := domain.ChannelRef{Network: "irc1", Channel: "#feeds"}
	if _, err := s.AddFeed(ctx, store.Feed{URL: broken.URL, Title: "Broken", Target: target}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddFeed(ctx, store.Feed{URL: good.URL, Title: "Good", Target: target}); err != nil {
		t.Fatal(err)
	}

	NewManager(b, s, logger, time.Minute).refresh(ctx)

	select {
	case a := <-b.Actions():
		if a.Target != target {
			t.Fatalf("wrong target: %+v", a.Target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("good feed was not announced after broken one failed")
	}
}
