package main

import (
	"errors"
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full set of bench knobs. Every field can be set from the
// TOML file given by -config; a flag set on the command line wins.
type Config struct {
	Engine      string  `toml:"engine"`  // recency | computing | soft | tiered
	Backing     string  `toml:"backing"` // computing only: sync | sharded | otter | sieve
	Capacity    int     `toml:"capacity"`
	Shards      int     `toml:"shards"`
	Generations int     `toml:"generations"`
	Workers     int     `toml:"workers"`
	Duration    string  `toml:"duration"`
	LoadDelay   string  `toml:"load_delay"`
	ReadPct     int     `toml:"reads"`
	Keys        int     `toml:"keys"`
	ZipfS       float64 `toml:"zipf_s"`
	ZipfV       float64 `toml:"zipf_v"`
	Seed        int64   `toml:"seed"`
	Preload     int     `toml:"preload"`

	MetricsAddr string `toml:"metrics_addr"`
	PprofAddr   string `toml:"pprof_addr"`
	LogFile     string `toml:"log_file"`
	ReportFile  string `toml:"report_file"`
	ReportMaxMB int    `toml:"report_max_mb"`
}

func defaultConfig() Config {
	return Config{
		Engine:      "recency",
		Backing:     "sync",
		Capacity:    100_000,
		Workers:     2 * runtime.GOMAXPROCS(0),
		Duration:    "10s",
		LoadDelay:   "0s",
		ReadPct:     80,
		Keys:        1_000_000,
		ZipfS:       1.1,
		ZipfV:       1.0,
		Seed:        time.Now().UnixNano(),
		MetricsAddr: ":8080",
		ReportMaxMB: 10,
	}
}

// bindFlags registers one flag per Config field on fs, with cfg's current
// values as defaults. The returned func copies the explicitly set flags
// into a target Config.
func bindFlags(fs *flag.FlagSet, cfg *Config) func(dst *Config) {
	fl := *cfg
	fs.StringVar(&fl.Engine, "engine", fl.Engine, "engine: recency | computing | soft | tiered")
	fs.StringVar(&fl.Backing, "backing", fl.Backing, "computing backing: sync | sharded | otter | sieve")
	fs.IntVar(&fl.Capacity, "cap", fl.Capacity, "capacity (entries); front size for tiered")
	fs.IntVar(&fl.Shards, "shards", fl.Shards, "shards for the sharded backing (0=auto)")
	fs.IntVar(&fl.Generations, "generations", fl.Generations, "soft tier idle threshold in GC cycles (0=default)")
	fs.IntVar(&fl.Workers, "workers", fl.Workers, "number of worker goroutines")
	fs.StringVar(&fl.Duration, "duration", fl.Duration, "benchmark duration")
	fs.StringVar(&fl.LoadDelay, "load_delay", fl.LoadDelay, "simulated loader latency")
	fs.IntVar(&fl.ReadPct, "reads", fl.ReadPct, "read percentage [0..100]")
	fs.IntVar(&fl.Keys, "keys", fl.Keys, "keyspace size")
	fs.Float64Var(&fl.ZipfS, "zipf_s", fl.ZipfS, "Zipf s > 1 (skew)")
	fs.Float64Var(&fl.ZipfV, "zipf_v", fl.ZipfV, "Zipf v >= 1")
	fs.Int64Var(&fl.Seed, "seed", fl.Seed, "random seed")
	fs.IntVar(&fl.Preload, "preload", fl.Preload, "preload entries (0 = cap/2)")
	fs.StringVar(&fl.MetricsAddr, "http", fl.MetricsAddr, "serve Prometheus metrics at addr; empty = disabled")
	fs.StringVar(&fl.PprofAddr, "pprof", fl.PprofAddr, "serve pprof at addr (e.g. :6060); empty = disabled")
	fs.StringVar(&fl.LogFile, "logfile", fl.LogFile, "write logs to this file instead of stderr")
	fs.StringVar(&fl.ReportFile, "report", fl.ReportFile, "append reports to this rotated file; empty = stdout")
	fs.IntVar(&fl.ReportMaxMB, "report_max_mb", fl.ReportMaxMB, "rotate the report file after this many megabytes")

	return func(dst *Config) {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "engine":
				dst.Engine = fl.Engine
			case "backing":
				dst.Backing = fl.Backing
			case "cap":
				dst.Capacity = fl.Capacity
			case "shards":
				dst.Shards = fl.Shards
			case "generations":
				dst.Generations = fl.Generations
			case "workers":
				dst.Workers = fl.Workers
			case "duration":
				dst.Duration = fl.Duration
			case "load_delay":
				dst.LoadDelay = fl.LoadDelay
			case "reads":
				dst.ReadPct = fl.ReadPct
			case "keys":
				dst.Keys = fl.Keys
			case "zipf_s":
				dst.ZipfS = fl.ZipfS
			case "zipf_v":
				dst.ZipfV = fl.ZipfV
			case "seed":
				dst.Seed = fl.Seed
			case "preload":
				dst.Preload = fl.Preload
			case "http":
				dst.MetricsAddr = fl.MetricsAddr
			case "pprof":
				dst.PprofAddr = fl.PprofAddr
			case "logfile":
				dst.LogFile = fl.LogFile
			case "report":
				dst.ReportFile = fl.ReportFile
			case "report_max_mb":
				dst.ReportMaxMB = fl.ReportMaxMB
			}
		})
	}
}

// loadConfig parses args on fs and merges: defaults, then the TOML file
// named by -config (if any), then explicitly set flags.
func loadConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	path := fs.String("config", "", "path to a TOML configuration file")
	apply := bindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *path != "" {
		md, err := toml.DecodeFile(*path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", *path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return Config{}, fmt.Errorf("config %s: unknown key %q", *path, undec[0].String())
		}
	}
	apply(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be > 0, got %d", c.Capacity))
	}
	if c.Keys <= 0 {
		errs = append(errs, fmt.Errorf("keys must be > 0, got %d", c.Keys))
	}
	if c.ReadPct < 0 || c.ReadPct > 100 {
		errs = append(errs, fmt.Errorf("reads must be in [0,100], got %d", c.ReadPct))
	}
	if c.ZipfS <= 1 || c.ZipfV < 1 {
		errs = append(errs, fmt.Errorf("zipf needs s > 1 and v >= 1, got s=%v v=%v", c.ZipfS, c.ZipfV))
	}
	if _, err := c.duration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.loadDelay(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Preload == 0 {
		c.Preload = c.Capacity / 2
	}
	return errors.Join(errs...)
}

func (c *Config) duration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Duration)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	return d, nil
}

func (c *Config) loadDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.LoadDelay)
	if err != nil {
		return 0, fmt.Errorf("load_delay: %w", err)
	}
	return d, nil
}
