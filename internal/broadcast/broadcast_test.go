package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timvw/tcssh/internal/keys"
	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/otel"
	"github.com/timvw/tcssh/internal/session"
	"github.com/timvw/tcssh/internal/surface"
	"github.com/timvw/tcssh/internal/transport"
)

func setup(t *testing.T, addrs ...string) (*surface.Fake, *session.Orchestrator, []session.Session, *Broadcaster) {
	t.Helper()
	f := surface.NewFake()
	o := session.New(f, transport.Command{Kind: model.TransportSSH, Program: "ssh"})
	var targets []model.LaunchTarget
	for _, a := range addrs {
		targets = append(targets, model.LaunchTarget{Address: a, Transport: model.TransportSSH, Origin: a})
	}
	launched, warnings := o.Launch(context.Background(), targets)
	require.Empty(t, warnings)
	return f, o, launched, New(o, f, WithTelemetry(otel.Noop()))
}

func TestKeyReachesOnlyOpenSessions(t *testing.T) {
	f, _, s, b := setup(t, "h1", "h2", "h3", "h4")
	require.NoError(t, f.Close(s[2].Handle))

	n := b.Key(keys.Literal("x"))
	assert.Equal(t, 3, n)

	press, release := keys.Pair(keys.Literal("x"))
	for _, i := range []int{0, 1, 3} {
		assert.Equal(t, []keys.Event{press, release}, f.Keys(s[i].Handle), s[i].Key)
	}
	assert.Empty(t, f.Keys(s[2].Handle))
}

func TestReleaseSkipsWindowClosedAfterPress(t *testing.T) {
	f, _, s, b := setup(t, "h1", "h2", "h3")

	st := b.Press(keys.Named("Enter"))
	assert.Len(t, st.Targets(), 3)
	require.NoError(t, f.Close(s[1].Handle))
	st.Release()

	press, release := keys.Pair(keys.Named("Enter"))
	assert.Equal(t, []keys.Event{press, release}, f.Keys(s[0].Handle))
	assert.Equal(t, []keys.Event{press}, f.Keys(s[1].Handle))
	assert.Equal(t, []keys.Event{press, release}, f.Keys(s[2].Handle))
}

func TestReleaseNotSentToLaterSessions(t *testing.T) {
	_, o, _, b := setup(t, "h1")
	st := b.Press(keys.Literal("a"))

	more, _ := o.Launch(context.Background(), []model.LaunchTarget{{Address: "h2", Transport: model.TransportSSH}})
	st.Release()

	assert.Len(t, st.Targets(), 1)
	assert.NotContains(t, st.Targets(), more[0].Handle)
}

func TestKeystrokesStayOrdered(t *testing.T) {
	f, _, s, b := setup(t, "h1", "h2")
	b.Key(keys.Literal("a"))
	b.Key(keys.Named("C-c"))
	b.Key(keys.Pasted("one\ntwo"))

	a1, a2 := keys.Pair(keys.Literal("a"))
	c1, c2 := keys.Pair(keys.Named("C-c"))
	p1, p2 := keys.Pair(keys.Pasted("one\ntwo"))
	want := []keys.Event{a1, a2, c1, c2, p1, p2}
	for _, sess := range s {
		assert.Equal(t, want, f.Keys(sess.Handle))
	}
}

func TestKeyWithNoSessions(t *testing.T) {
	f, _, s, b := setup(t, "h1")
	require.NoError(t, f.Close(s[0].Handle))
	assert.Equal(t, 0, b.Key(keys.Literal("x")))
}

func TestText(t *testing.T) {
	f, _, s, b := setup(t, "h1")
	b.Text("ls\n")

	l1, l2 := keys.Pair(keys.Literal("ls"))
	e1, e2 := keys.Pair(keys.Named("Enter"))
	assert.Equal(t, []keys.Event{l1, l2, e1, e2}, f.Keys(s[0].Handle))
}

func TestSendHostnames(t *testing.T) {
	f, _, s, b := setup(t, "web1", "web2")
	b.SendHostnames()

	for _, sess := range s {
		p, r := keys.Pair(keys.Literal(sess.Target.Address))
		assert.Equal(t, []keys.Event{p, r}, f.Keys(sess.Handle))
	}
}
