// Command pocketbench runs a synthetic Zipf workload against any pocket
// cache engine and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jedisct1/dlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	pmet "github.com/IvanBrykalov/pocketcache/metrics/prom"
)

const appName = "pocketbench"

func main() {
	dlog.Init(appName, dlog.SeverityNotice, "DAEMON")

	cfg, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		dlog.Fatal(err)
	}
	if cfg.LogFile != "" {
		dlog.UseLogFile(cfg.LogFile)
	}

	if cfg.PprofAddr != "" {
		go func() {
			dlog.Noticef("pprof: serving at %s", cfg.PprofAddr)
			dlog.Warn(http.ListenAndServe(cfg.PprofAddr, nil))
		}()
	}

	events := pmet.New(prometheus.DefaultRegisterer, "pocket", "bench", prometheus.Labels{"engine": cfg.Engine})
	e, err := newEngine(cfg, events)
	if err != nil {
		dlog.Fatal(err)
	}
	col := pmet.NewCollector("pocket", "instance")
	prometheus.MustRegister(col)
	if err := col.Add(cfg.Engine, e); err != nil {
		dlog.Fatal(err)
	}

	if cfg.MetricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			dlog.Noticef("metrics: serving at %s", cfg.MetricsAddr)
			dlog.Warn(http.ListenAndServe(cfg.MetricsAddr, nil))
		}()
	}

	dlog.Infof("preloading %d entries", cfg.Preload)
	for i := 0; i < cfg.Preload; i++ {
		e.put("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i))
	}

	res, err := run(context.Background(), cfg, e)
	if err != nil {
		dlog.Fatal(err)
	}

	w := reportWriter(cfg.ReportFile, cfg.ReportMaxMB)
	defer w.Close()
	if err := res.write(w); err != nil {
		dlog.Errorf("report: %v", err)
	}
}

// run drives cfg.Workers goroutines against e for cfg.Duration.
func run(ctx context.Context, cfg Config, e engine) (result, error) {
	d, err := cfg.duration()
	if err != nil {
		return result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var reads, writes, found, absent, errs atomic.Uint64
	keysMax := uint64(cfg.Keys - 1)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(cfg.Seed + int64(w)*9973))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, keysMax)

			for ctx.Err() == nil {
				k := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				if int(r.Int31n(100)) >= cfg.ReadPct {
					writes.Add(1)
					e.put(k, "v"+strconv.Itoa(r.Int()))
					continue
				}
				reads.Add(1)
				_, ok, err := e.get(ctx, k)
				switch {
				case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
					return nil
				case err != nil:
					errs.Add(1)
					dlog.Debugf("get %s: %v", k, err)
				case ok:
					found.Add(1)
				default:
					absent.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, err
	}

	dlog.Noticef("run finished after %v", time.Since(start).Round(time.Millisecond))
	return result{
		cfg:     cfg,
		elapsed: time.Since(start),
		reads:   reads.Load(),
		writes:  writes.Load(),
		found:   found.Load(),
		absent:  absent.Load(),
		errs:    errs.Load(),
		stats:   e.Stats(),
		length:  e.Len(),
	}, nil
}
