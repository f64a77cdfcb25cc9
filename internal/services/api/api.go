// Package api provides the HTTP API for the application
package api

import (
	"awardarchive/internal/platform/config"
	"awardarchive/internal/platform/logger"
	phttp "awardarchive/internal/platform/net/http"
	"awardarchive/internal/platform/store"

	"awardarchive/internal/modkit"
	"awardarchive/internal/modkit/httpkit"
	"awardarchive/internal/modkit/module"

	apiingest "awardarchive/internal/services/api/ingest/module"
	metamod "awardarchive/internal/services/api/meta/module"

	// Worker ingest module (owns the runner, table store and runs repo)
	workeringest "awardarchive/internal/services/ingest/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
	}

	// Construct the WORKER ingest module first; the API module borrows its
	// runner, table store and runs repo through WithPorts
	workerIngest := workeringest.New(deps)

	apiIngest := apiingest.New(
		deps,
		modkit.WithPorts(apiingest.Ports{
			Ingest: workerIngest,
		}),
	)

	mods := []module.Module{
		metamod.New(deps),
		workerIngest, // include worker so its ports are registered
		apiIngest,    // API module that depends on the worker's ports
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
