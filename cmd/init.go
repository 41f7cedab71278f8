package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxide-lab/discover/internal/config"
	"github.com/oxide-lab/discover/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config and secrets template",
	Long: `Create ~/.oxide/ (or $OXIDE_HOME) with a default discover.yaml and an
.env template for OXIDE_HF_TOKEN and OXIDE_REDIS_PASSWORD. Existing files
are left untouched unless --force is given for the config.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var flagInitForce bool

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite an existing discover.yaml with defaults")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	// ── 1. Resolve ~/.oxide directory ─────────────────────────────────────────
	dir, err := config.OxideDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("directory ready: %s", dir))

	// ── 2. Write discover.yaml if missing ─────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) || flagInitForce {
		if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("config already exists: %s", cfgPath))
	}

	// ── 3. Secrets template ───────────────────────────────────────────────────
	envPath, err := config.DotEnvPath()
	if err != nil {
		return err
	}
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("secrets file ready: %s", envPath))

	// ── 4. Validate ───────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	storePath, err := cfg.StorePath()
	if err != nil {
		return err
	}
	printInfo("store", fmt.Sprintf("%s backend, %s", cfg.Store.Backend, storeLocation(cfg, storePath)))
	printInfo("catalog", cfg.HubURL)
	return nil
}

func storeLocation(cfg *config.Config, path string) string {
	if cfg.Store.Backend == store.BackendRedis {
		return fmt.Sprintf("%s db %d", cfg.Store.RedisAddr, cfg.Store.RedisDB)
	}
	if cfg.Store.Backend == store.BackendMemory {
		return "not persisted"
	}
	return path
}
