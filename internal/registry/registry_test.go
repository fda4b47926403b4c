package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"relaybot/internal/bus"
	"relaybot/internal/domain"
)

// fakeConn is a connector whose wire is a pair of Go channels.
type fakeConn struct {
	network string
	feed    chan domain.Event  // events the fake "receives" from its network
	sent    chan domain.Action // actions that reached the wire
}

func newFakeConn(network string) *fakeConn {
	return &fakeConn{
		network: network,
		feed:    make(chan domain.Event, 10),
		sent:    make(chan domain.Action, 10),
	}
}

func (f *fakeConn) Network() string { return f.network }

func (f *fakeConn) Run(ctx context.Context, events chan<- domain.Event, actions <-chan domain.Action) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-f.feed:
			events <- e
		case a := <-actions:
			f.sent <- a
		}
	}
}

func startRegistry(t *testing.T, networks map[string][]string) (*bus.Bus, map[string]*fakeConn, context.CancelFunc) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(10, logger)
	r := New(b, logger)

	conns := make(map[string]*fakeConn)
	for name, admins := range networks {
		conn := newFakeConn(name)
		conns[name] = conn
		r.Add(conn, admins)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	t.Cleanup(func() {
		cancel()
		b.Close()
	})
	return b, conns, cancel
}

func expectAction(t *testing.T, conn *fakeConn) domain.Action {
	t.Helper()
	select {
	case a := <-conn.sent:
		return a
	case <-time.After(time.Second):
		t.Fatalf("no action reached network %s", conn.network)
		return domain.Action{}
	}
}

func expectNoAction(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case a := <-conn.sent:
		t.Fatalf("unexpected action on network %s: %+v", conn.network, a)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoutesActionToMatchingNetworkOnly(t *testing.T) {
	b, conns, _ := startRegistry(t, map[string][]string{"irc1": nil, "irc2": nil})

	b.SubmitAction(domain.Action{
		Target: domain.ChannelRef{Network: "irc1", Channel: "#chan"},
		Kind:   domain.ActionSay,
		Text:   "hello",
	})

	a := expectAction(t, conns["irc1"])
	if a.Text != "hello" || a.Target.Channel != "#chan" {
		t.Fatalf("wrong action delivered: %+v", a)
	}
	expectNoAction(t, conns["irc2"])
}

func TestUnknownNetworkIsDroppedAndRoutingContinues(t *testing.T) {
	b, conns, _ := startRegistry(t, map[string][]string{"irc1": nil, "irc2": nil})

	b.SubmitAction(domain.Action{
		Target: domain.ChannelRef{Network: "irc3", Channel: "#chan"},
		Text:   "lost",
	})
	b.SubmitAction(domain.Action{
		Target: domain.ChannelRef{Network: "irc2", Channel: "#chan"},
		Text:   "after drop",
	})

	a := expectAction(t, conns["irc2"])
	if a.Text != "after drop" {
		t.Fatalf("expected follow-up action, got %+v", a)
	}
	expectNoAction(t, conns["irc1"])
}

func TestInboundOrderPreservedPerNetwork(t *testing.T) {
	b, conns, _ := startRegistry(t, map[string][]string{"irc1": nil})

	for _, text := range []string{"e1", "e2", "e3"} {
		conns["irc1"].feed <- domain.Event{
			Network: "irc1",
			Message: domain.Message{Kind: domain.KindText, Channel: "#chan", Text: text},
		}
	}

	for _, want := range []string{"e1", "e2", "e3"} {
		select {
		case e := <-b.Events():
			if e.Message.Text != want {
				t.Fatalf("expected %q, got %q", want, e.Message.Text)
			}
			if e.Network != "irc1" {
				t.Fatalf("expected network irc1, got %q", e.Network)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestAdminMatchIsExact(t *testing.T) {
	b, _, _ := startRegistry(t, map[string][]string{
		"net1": {"alice!a@host"},
		"net2": nil,
	})
	ctx := context.Background()

	if !b.IsAdmin(ctx, "net1", "alice!a@host") {
		t.Fatal("exact mask on configured network must be admin")
	}
	if b.IsAdmin(ctx, "net1", "alice!a@host2") {
		t.Fatal("any differing character must not match")
	}
	if b.IsAdmin(ctx, "net2", "alice!a@host") {
		t.Fatal("mask must not match on a different network")
	}
	if b.IsAdmin(ctx, "net3", "alice!a@host") {
		t.Fatal("unknown network must not be admin")
	}
}

func TestAbandonedQueryDoesNotStallRegistry(t *testing.T) {
	b, _, _ := startRegistry(t, map[string][]string{"net1": {"alice!a@host"}})
	ctx := context.Background()

	// Enqueue a query and never read its reply.
	abandoned := domain.NewAdminQuery("net1", "alice!a@host")
	if !b.SubmitQuery(ctx, abandoned) {
		t.Fatal("query submission failed")
	}

	// The registry must still answer later queries.
	if !b.IsAdmin(ctx, "net1", "alice!a@host") {
		t.Fatal("registry stopped answering after abandoned query")
	}
}

func TestDeadActorDoesNotStopRouting(t *testing.T) {
	b, conns, _ := startRegistry(t, map[string][]string{"irc1": nil, "irc2": nil})

	// Saturate irc1's actor until its inbox fills and routed actions start
	// dropping, as they would for a dead connection. Routing to irc2 must
	// be unaffected throughout.
	for i := 0; i < inboxSize*3; i++ {
		b.SubmitAction(domain.Action{
			Target: domain.ChannelRef{Network: "irc1", Channel: "#chan"},
			Text:   "flood",
		})
	}

	b.SubmitAction(domain.Action{
		Target: domain.ChannelRef{Network: "irc2", Channel: "#chan"},
		Text:   "still alive",
	})

	a := expectAction(t, conns["irc2"])
	if a.Text != "still alive" {
		t.Fatalf("expected action on irc2, got %+v", a)
	}
}
