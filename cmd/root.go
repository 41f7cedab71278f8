package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagDebug bool

// logger is shared by every command; --debug lowers its level.
var logger = newLogger()

var rootCmd = &cobra.Command{
	Use:          "discover",
	Short:        "discover — search and cache remote GGUF model catalogs",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `discover searches a remote model catalog for GGUF repositories, keeps
paginated results in a local cache at ~/.oxide/ and answers from that cache
when the catalog is slow or unreachable.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagDebug {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Print debug logs to stderr")
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
