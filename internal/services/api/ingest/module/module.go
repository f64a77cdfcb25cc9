// Package module wires ingest triggers into the API using modkit
package module

import (
	"net/http"

	modkit "awardarchive/internal/modkit"
	"awardarchive/internal/modkit/httpkit"
	str "awardarchive/internal/platform/strings"
	ingesthttp "awardarchive/internal/services/api/ingest/http"
	ingestsvc "awardarchive/internal/services/api/ingest/service"
	ingmod "awardarchive/internal/services/ingest/module"
	"awardarchive/internal/services/query"
)

// Ports declares the cross module wiring this module needs
// the worker ingest module owns the runner, store and runs repo
type Ports struct {
	Ingest *ingmod.Module
}

// Module implements the ingest API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws   []func(http.Handler) http.Handler
	ports any

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc ingestsvc.Service
}

// New constructs the ingest API module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("ingest-api"), modkit.WithPrefix("/ingest")}, opts...)...)

	injected, ok := b.Ports.(Ports)
	if !ok || injected.Ingest == nil {
		panic("ingest API module requires the worker ingest module via WithPorts")
	}
	wp := injected.Ingest.Ports().(ingmod.Ports)

	q := query.New(wp.Store, injected.Ingest.DataDir())
	svc := ingestsvc.New(injected.Ingest, wp.Runner, wp.Runs, q)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = adaptTriggerPort{svc: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ingesthttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }
