package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxide-lab/discover/internal/catalog"
	"github.com/oxide-lab/discover/internal/config"
	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/searchcache"
	"github.com/oxide-lab/discover/internal/store"
)

var flagDoctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that the config, the persistent store and the model catalog are
usable. Run this command when something seems wrong, or before filing a bug
report.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&flagDoctorOffline, "offline", false, "Skip the catalog reachability check")
	rootCmd.AddCommand(doctorCmd)
}

const doctorProbeKey = "doctor-probe"

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("discover doctor")
	fmt.Fprintln(stdout)

	// ── Check 1: config ───────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ discover.yaml ]")
	cfgPath, _ := config.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		printSkip("", fmt.Sprintf("%s not found — using defaults (run 'discover init' to write it)", cfgPath))
	}
	cfg, err := config.Load()
	if err != nil {
		failD("cannot parse config: %v", err)
		return fmt.Errorf("doctor found problems")
	}
	printOK("", fmt.Sprintf("page size %d, cache %d entries × %d pages × %d items",
		cfg.PageSize, cfg.Cache.MaxEntries, cfg.Cache.MaxPagesPerQuery, cfg.Cache.MaxItemsPerPage))
	fmt.Fprintln(stdout)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// ── Check 2: store ────────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ store ]")
	path, _ := cfg.StorePath()
	redisPassword, _ := config.GetConfigValue(config.KeyRedisPassword)
	kv, err := store.Open(ctx, store.Options{
		Backend:       cfg.Store.Backend,
		Path:          path,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: redisPassword,
		RedisDB:       cfg.Store.RedisDB,
		KeyPrefix:     cfg.Store.KeyPrefix,
	}, logger)
	if err != nil {
		failD("cannot open %s store: %v", cfg.Store.Backend, err)
	} else {
		defer func() {
			if c, ok := kv.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		}()
		probe := time.Now().UTC().Format(time.RFC3339Nano)
		if err := kv.Set(ctx, doctorProbeKey, probe); err != nil {
			failD("cannot write to store: %v", err)
		} else if got, ok, err := kv.Get(ctx, doctorProbeKey); err != nil || !ok || got != probe {
			failD("store did not return the written value (err: %v)", err)
		} else {
			printOK("", fmt.Sprintf("%s store is writable: %s", cfg.Store.Backend, storeLocation(cfg, path)))
		}

		// ── Check 3: cached data ──────────────────────────────────────────────
		if data, ok, err := kv.Get(ctx, searchcache.DefaultStoreKey); err == nil && ok {
			c, dropped := searchcache.Decode([]byte(data), cfg.CacheLimits())
			if dropped > 0 {
				printWarn("", fmt.Sprintf("search cache has %d unreadable part(s); they will be dropped on next save", dropped))
			} else {
				printOK("", fmt.Sprintf("search cache readable: %d entries", c.Len()))
			}
		} else {
			printSkip("", "no search cache saved yet")
		}
	}
	fmt.Fprintln(stdout)

	// ── Check 4: catalog ──────────────────────────────────────────────────────
	fmt.Fprintln(stdout, "[ catalog ]")
	if flagDoctorOffline {
		printSkip("", "skipped (--offline)")
	} else {
		token, _ := config.GetConfigValue(config.KeyHFToken)
		hub := catalog.NewHub(nil, cfg.HubURL, token, logger)
		defer hub.Close()
		if token == "" {
			printInfo("", "no OXIDE_HF_TOKEN set; gated repositories will not be listed")
		}
		start := time.Now()
		items, err := hub.Search(ctx, "", filter.Default(), 0, 1)
		if err != nil {
			failD("%s unreachable: %v", hub.BaseURL(), err)
		} else {
			printOK("", fmt.Sprintf("%s answered in %s (%d result)", hub.BaseURL(), time.Since(start).Round(time.Millisecond), len(items)))
		}
	}
	fmt.Fprintln(stdout)

	if !allOK {
		return fmt.Errorf("doctor found problems")
	}
	printOK("", "all checks passed")
	return nil
}
