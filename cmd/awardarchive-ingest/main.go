package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"awardarchive/internal/modkit"
	"awardarchive/internal/platform/config"
	"awardarchive/internal/platform/logger"
	"awardarchive/internal/platform/store"

	ingmod "awardarchive/internal/services/ingest/module"
	ingestrepo "awardarchive/internal/services/ingest/repo"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	var (
		fSources  = flag.String("sources", "", "comma separated mileage program codes, empty means all")
		fStart    = flag.String("start-date", "", "availability window start YYYY-MM-DD")
		fEnd      = flag.String("end-date", "", "availability window end YYYY-MM-DD")
		fCabin    = flag.String("cabin", "", "cabin filter: economy | premium | business | first")
		fMaxPages = flag.Int("max-pages", 0, "cap pages per source, 0 means no cap")
		fPageSize = flag.Int("page-size", 0, "rows per page, 0 uses the configured default")
		fSkip     = flag.Int("skip", 0, "resume seats.aero offset pagination at this row")

		fIPrefer   = flag.Bool("iprefer", false, "run the iPrefer pipelines instead of seats.aero")
		fHotels    = flag.Bool("hotels-only", false, "iPrefer: only refresh the hotel directory")
		fAvail     = flag.Bool("availability-only", false, "iPrefer: only refresh rate calendars")
		fMaxHotels = flag.Int("max-hotels", 0, "iPrefer: cap hotels, 0 means all")
		fNIDs      = flag.String("nids", "", "iPrefer: comma separated hotel nids, skips directory resolution")

		fOptimize = flag.String("optimize", "", "compact and vacuum the named table, then exit")
	)
	flag.Parse()

	// run bookkeeping is optional; no DBURL leaves postgres disabled
	pgURL := pgCfg.MayString("DBURL", "")
	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	ctx := context.Background()
	if st.PG != nil {
		if err := ingestrepo.EnsureSchema(ctx, st.PG); err != nil {
			l.Panic().Err(err).Msg("ensure ingest_runs schema failed")
		}
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG}
	mod := ingmod.New(deps)
	ports := mod.Ports().(ingmod.Ports)

	if *fOptimize != "" {
		h, err := ports.Store.Open(ctx, *fOptimize)
		if err != nil {
			l.Panic().Err(err).Str("table", *fOptimize).Msg("open table failed")
		}
		if err := h.Optimize(ctx); err != nil {
			l.Panic().Err(err).Str("table", *fOptimize).Msg("optimize failed")
		}
		l.Info().Str("table", *fOptimize).Msg("optimize done")
		return
	}

	specs := mod.SeatsSources(ingmod.SeatsRequest{
		Sources:   splitCSV(*fSources),
		StartDate: *fStart,
		EndDate:   *fEnd,
		Cabin:     *fCabin,
		MaxPages:  *fMaxPages,
		PageSize:  *fPageSize,
		Skip:      *fSkip,
	})
	if *fIPrefer {
		specs = mod.IPreferSources(ingmod.IPreferRequest{
			HotelsOnly:       *fHotels,
			AvailabilityOnly: *fAvail,
			MaxHotels:        *fMaxHotels,
			NIDs:             parseNIDs(*fNIDs),
			MaxPages:         *fMaxPages,
		})
	}

	failed := 0
	for _, sum := range ports.Runner.RunAll(ctx, specs) {
		ev := l.Info()
		if sum.Failed() {
			failed++
			ev = l.Error().Err(sum.Err)
		}
		ev.
			Str("source", sum.Source).
			Str("table", sum.Table).
			Int("pages", sum.Pages).
			Int("records", sum.Records).
			Int("inserted", sum.Inserted).
			Int("updated", sum.Updated).
			Msg("run finished")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNIDs(s string) []int64 {
	var out []int64
	for _, p := range splitCSV(s) {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}
