package dispatch

import (
	"context"
	"fmt"
	"strconv"

	"relaybot/internal/domain"
	"relaybot/internal/rss"
	"relaybot/internal/store"
)

// cmdRSS manages the channel's feed subscriptions. The caller has already
// checked that the sender is an admin on this network.
func (d *Dispatcher) cmdRSS(ctx context.Context, source domain.ChannelRef, params string) {
	sub, rest := splitCommand(params)

	switch sub {
	case "add":
		d.cmdRSSAdd(ctx, source, rest)
	case "remove":
		d.cmdRSSRemove(ctx, source, rest)
	case "list":
		d.cmdRSSList(ctx, source)
	default:
		d.say(source, fmt.Sprintf("Usage: %srss add <url> | remove <id> | list", d.prefix))
	}
}

// cmdRSSAdd validates the feed by fetching it once, stores the subscription,
// and marks the current entries as posted so only future ones get announced.
func (d *Dispatcher) cmdRSSAdd(ctx context.Context, source domain.ChannelRef, url string) {
	if url == "" {
		d.say(source, fmt.Sprintf("Usage: %srss add <url>", d.prefix))
		return
	}

	parsed, err := rss.Fetch(ctx, url)
	if err != nil {
		d.logger.Warn("feed validation failed", "url", url, "error", err)
		d.say(source, "Could not fetch or parse feed")
		return
	}

	id, err := d.store.AddFeed(ctx, store.Feed{URL: url, Title: parsed.Title, Target: source})
	if err != nil {
		d.say(source, "Feed already added")
		return
	}

	for _, item := range parsed.Items {
		if _, err := d.store.MarkPosted(ctx, id, rss.EntryGUID(item)); err != nil {
			d.logger.Error("recording feed entry failed", "url", url, "error", err)
		}
	}

	d.say(source, "Added feed: "+parsed.Title)
}

func (d *Dispatcher) cmdRSSRemove(ctx context.Context, source domain.ChannelRef, params string) {
	id, err := strconv.ParseInt(params, 10, 64)
	if err != nil {
		d.say(source, fmt.Sprintf("Usage: %srss remove <id>", d.prefix))
		return
	}

	removed, err := d.store.RemoveFeed(ctx, id, source)
	if err != nil {
		d.logger.Error("removing feed failed", "id", id, "error", err)
		d.say(source, "Database error")
		return
	}
	if !removed {
		d.say(source, "No such feed on this channel")
		return
	}
	d.say(source, "Feed removed")
}

func (d *Dispatcher) cmdRSSList(ctx context.Context, source domain.ChannelRef) {
	feeds, err := d.store.FeedsFor(ctx, source)
	if err != nil {
		d.logger.Error("listing feeds failed", "error", err)
		d.say(source, "Database error")
		return
	}
	if len(feeds) == 0 {
		d.say(source, "No feeds for this channel")
		return
	}
	for _, f := range feeds {
		d.say(source, fmt.Sprintf("%d: %s %s", f.ID, f.Title, f.URL))
	}
}
