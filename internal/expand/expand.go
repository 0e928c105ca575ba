// Package expand turns resolved hosts into launch targets, optionally
// multiplying each host into one target per looked-up address.
package expand

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/hostspec"
	"github.com/timvw/tcssh/internal/model"
	"github.com/timvw/tcssh/internal/otel"
)

// Lookup resolves a host name to addresses. *net.Resolver satisfies it.
type Lookup interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Expander builds LaunchTargets from resolved hosts.
type Expander struct {
	lookup Lookup
	logger *log.Logger
	tel    *otel.Telemetry

	group singleflight.Group
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the logger used for per-host warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Expander) { e.logger = l }
}

// WithTelemetry sets the span and counter sink.
func WithTelemetry(t *otel.Telemetry) Option {
	return func(e *Expander) { e.tel = t }
}

// New returns an Expander using lookup. A nil lookup uses net.DefaultResolver.
func New(lookup Lookup, opts ...Option) *Expander {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	e := &Expander{lookup: lookup, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type result struct {
	addrs []string
	err   error
}

// Expand converts hosts into targets in order.
//
// With addresses false every host becomes exactly one target and no lookup is
// made. With addresses true every host that is not already a literal address
// is looked up; all lookups start together and Expand returns only after every
// one has finished. Each returned address becomes its own target at the
// host's position. A failed lookup yields no target and an UnresolvedHost
// warning. Returned addresses are never reinterpreted as cluster or tag names.
func (e *Expander) Expand(ctx context.Context, hosts []hostspec.HostSpec, addresses bool, transport model.Transport) ([]model.LaunchTarget, []tcerrors.Warning) {
	if !addresses {
		targets := make([]model.LaunchTarget, len(hosts))
		for i, h := range hosts {
			targets[i] = model.TargetFromHost(h, transport)
		}
		return targets, nil
	}

	ctx, span := e.tel.Start(ctx, "expand")
	defer span.End()
	span.SetAttributes(attribute.Int("expand.hosts", len(hosts)))

	results := make([]result, len(hosts))
	var wg sync.WaitGroup
	for i, h := range hosts {
		if h.IsIPLiteral() {
			e.metrics().RecordLookup(ctx, "skipped")
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			addrs, err := e.lookupOnce(ctx, name)
			results[i] = result{addrs: addrs, err: err}
		}(i, h.Host)
	}
	wg.Wait()

	var targets []model.LaunchTarget
	var warnings []tcerrors.Warning
	for i, h := range hosts {
		if h.IsIPLiteral() {
			targets = append(targets, model.TargetFromHost(h, transport))
			continue
		}
		r := results[i]
		if r.err == nil && len(r.addrs) == 0 {
			r.err = &net.DNSError{Err: "no addresses", Name: h.Host, IsNotFound: true}
		}
		if r.err != nil {
			w := tcerrors.UnresolvedHost(h.String(), r.err)
			e.logger.Warn("address lookup failed", "host", h.String(), "error", r.err)
			warnings = append(warnings, tcerrors.Warn(w))
			continue
		}
		for _, addr := range r.addrs {
			t := model.TargetFromHost(h.WithHost(addr), transport)
			t.Origin = h.Host
			targets = append(targets, t)
		}
	}
	return targets, warnings
}

// lookupOnce shares one in-flight query between duplicate host names
// (u1@foo and u2@foo look up foo once).
func (e *Expander) lookupOnce(ctx context.Context, name string) ([]string, error) {
	v, err, _ := e.group.Do(name, func() (interface{}, error) {
		ctx, span := e.tel.Start(ctx, "lookup_host")
		defer span.End()
		span.SetAttributes(attribute.String("host.name", name))

		addrs, err := e.lookup.LookupHost(ctx, name)
		if err != nil {
			span.RecordError(err)
			e.metrics().RecordLookup(ctx, "error")
			return nil, err
		}
		span.SetAttributes(attribute.Int("host.addresses", len(addrs)))
		e.metrics().RecordLookup(ctx, "ok")
		return addrs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (e *Expander) metrics() *otel.Metrics {
	if e.tel == nil {
		return nil
	}
	return e.tel.Metrics
}
