package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/IvanBrykalov/pocketcache/cache"
)

// result is one finished run.
type result struct {
	cfg     Config
	elapsed time.Duration
	reads   uint64
	writes  uint64
	found   uint64
	absent  uint64
	errs    uint64
	stats   cache.Stats
	length  int
}

// reportWriter returns stdout, or a size-rotated file when path is set.
func reportWriter(path string, maxMB int) io.WriteCloser {
	if path == "" || path == "/dev/stdout" {
		return nopCloser{os.Stdout}
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxMB,
		MaxBackups: 3,
		LocalTime:  true,
		Compress:   true,
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (r result) write(w io.Writer) error {
	ops := r.reads + r.writes
	engine := r.cfg.Engine
	if engine == "computing" {
		engine += "/" + r.cfg.Backing
	}
	_, err := fmt.Fprintf(w,
		"%s engine=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n"+
			"ops=%d (%.0f ops/s)  reads=%d  writes=%d  errors=%d\n"+
			"found=%d  absent=%d  hits=%d  misses=%d  hit-rate=%.2f%%  Len()=%d\n",
		time.Now().Format(time.RFC3339), engine, r.cfg.Capacity, r.cfg.Workers, r.cfg.Keys, r.elapsed, r.cfg.Seed,
		ops, float64(ops)/r.elapsed.Seconds(), r.reads, r.writes, r.errs,
		r.found, r.absent, r.stats.Hits, r.stats.Misses, r.stats.HitRatio()*100, r.length)
	return err
}
