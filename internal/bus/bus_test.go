package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"relaybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitActionPreservesOrder(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	for _, text := range []string{"one", "two", "three"} {
		b.SubmitAction(domain.Action{
			Target: domain.ChannelRef{Network: "net1", Channel: "#chan"},
			Text:   text,
		})
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case a := <-b.Actions():
			if a.Text != want {
				t.Fatalf("expected %q, got %q", want, a.Text)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for action")
		}
	}
}

func TestPublishEventPreservesOrder(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.PublishEvent(domain.Event{Network: "net1", Message: domain.Message{Text: "e1"}})
	b.PublishEvent(domain.Event{Network: "net1", Message: domain.Message{Text: "e2"}})

	for _, want := range []string{"e1", "e2"} {
		select {
		case e := <-b.Events():
			if e.Message.Text != want {
				t.Fatalf("expected %q, got %q", want, e.Message.Text)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubmitAfterCloseDoesNotPanic(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	b.SubmitAction(domain.Action{Target: domain.ChannelRef{Network: "net1"}})
	b.PublishEvent(domain.Event{Network: "net1"})
	b.Close() // double close is also a no-op
}

func TestIsAdminEmptyMaskFailsClosed(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	if b.IsAdmin(context.Background(), "net1", "") {
		t.Fatal("empty mask must never be admin")
	}
}

func TestIsAdminAnswered(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	go func() {
		q := <-b.Queries()
		q.Reply <- q.Mask == "alice!a@host"
	}()

	if !b.IsAdmin(context.Background(), "net1", "alice!a@host") {
		t.Fatal("expected admin answer true")
	}
}

func TestIsAdminContextCancelFailsClosed(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// Nobody is answering queries; a short deadline must resolve to false
	// instead of hanging.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if b.IsAdmin(ctx, "net1", "alice!a@host") {
		t.Fatal("unanswered query must read as not admin")
	}
}

func TestIsAdminOnClosedBus(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	if b.IsAdmin(context.Background(), "net1", "alice!a@host") {
		t.Fatal("closed bus must read as not admin")
	}
}

func TestAbandonedQueryReplyDoesNotBlock(t *testing.T) {
	// The reply slot is buffered, so answering a query whose asker already
	// gave up must return immediately.
	q := domain.NewAdminQuery("net1", "alice!a@host")

	done := make(chan struct{})
	go func() {
		q.Reply <- true
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reply to abandoned query blocked")
	}
}
