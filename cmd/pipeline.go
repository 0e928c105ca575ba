package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/timvw/tcssh/internal/cluster"
	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/expand"
	"github.com/timvw/tcssh/internal/hostspec"
	"github.com/timvw/tcssh/internal/model"
	telem "github.com/timvw/tcssh/internal/otel"
	"github.com/timvw/tcssh/internal/session"
)

// pipeline turns request names into open sessions: resolve, filter
// through the external command, expand, launch.
type pipeline struct {
	resolver  *cluster.Resolver
	external  *cluster.External
	expander  *expand.Expander
	orch      *session.Orchestrator
	transport model.Transport
	addresses bool

	// Defaults for hosts that name no user or port.
	user string
	port string

	logger *log.Logger
	tel    *telem.Telemetry
}

// targets resolves names into launch targets. Only fatal resolution errors
// are returned; everything else is a warning.
func (p *pipeline) targets(ctx context.Context, names []string) ([]model.LaunchTarget, []tcerrors.Warning, error) {
	ctx, span := p.tel.Start(ctx, "resolve")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("tcssh.names", names))

	hosts, warnings, err := p.resolver.ResolveAll(names)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, warnings, err
	}

	hosts, extWarnings := p.external.Apply(ctx, hosts)
	warnings = append(warnings, extWarnings...)

	hosts = p.withDefaults(hosts)
	if p.tel != nil && p.tel.Metrics != nil {
		p.tel.Metrics.RecordResolved(ctx, len(hosts))
	}
	span.SetAttributes(attribute.Int("tcssh.hosts", len(hosts)))

	targets, expWarnings := p.expander.Expand(ctx, hosts, p.addresses, p.transport)
	warnings = append(warnings, expWarnings...)
	return targets, warnings, nil
}

func (p *pipeline) withDefaults(hosts []hostspec.HostSpec) []hostspec.HostSpec {
	if p.user == "" && p.port == "" {
		return hosts
	}
	out := make([]hostspec.HostSpec, len(hosts))
	for i, h := range hosts {
		if h.User == "" {
			h.User = p.user
		}
		if h.Port == "" {
			h.Port = p.port
		}
		out[i] = h
	}
	return out
}

// launch resolves names and opens a session per target.
func (p *pipeline) launch(ctx context.Context, names []string) ([]session.Session, []tcerrors.Warning, error) {
	targets, warnings, err := p.targets(ctx, names)
	if err != nil {
		return nil, warnings, err
	}
	for _, w := range warnings {
		p.logger.Debug("warning", "kind", w.Kind(), "subject", w.Subject(), "error", w.Err)
	}
	if len(targets) == 0 {
		p.logger.Warn("no hosts to open", "names", names)
		return nil, warnings, nil
	}

	launched, launchWarnings := p.orch.Launch(ctx, targets)
	return launched, append(warnings, launchWarnings...), nil
}
