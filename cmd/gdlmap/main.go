package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gdlmap/internal/config"
	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// Loaded configuration
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gdlmap",
	Short: "gdlmap - structural analogies between GDL games",
	Long: `gdlmap parses games written in the Game Description Language and finds
a correspondence between the rules and predicates of two games.

The mapper bins predicates, then greedily pairs rules whose heads and bodies
agree, committing predicate pairs one-to-one as it goes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		path := configPath
		if path == "" {
			path = filepath.Join(ws, ".gdlmap", "config.yaml")
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}

		if err := logging.Configure(cfg.Logging.Options(ws)); err != nil {
			return err
		}
		if err := logging.InitAudit(); err != nil {
			logger.Warn("audit log unavailable", zap.Error(err))
			logging.BootWarn("audit log unavailable: %v", err)
		}
		logging.Boot("gdlmap %s (config %s)", cmd.Name(), path)
		logging.BootDebug("workspace %s, store %s", ws, cfg.Store.Path)
		logger.Debug("configuration loaded", zap.String("path", path), zap.String("workspace", ws))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.gdlmap/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

// resolvePath makes a relative configured path workspace-relative.
func resolvePath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	ws, err := resolveWorkspace()
	if err != nil {
		return "", err
	}
	return filepath.Join(ws, p), nil
}

// commandContext returns a context cancelled on SIGINT/SIGTERM and, when
// bounded is set, after --timeout.
func commandContext(bounded bool) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if !bounded || timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// slowParse is the load time above which a game is logged as slow.
const slowParse = time.Second

func loadGame(path string) (*gdl.IR, error) {
	timer := logging.StartTimer(logging.CategoryParser, "LoadFile "+path)
	defer timer.StopWithThreshold(slowParse)

	ir, err := gdl.LoadFile(path, cfg.Parser.ParseOptions()...)
	if err != nil {
		return nil, err
	}
	for _, d := range ir.Diagnostics {
		logger.Warn("lexical error recovered", zap.String("file", path), zap.Error(d))
	}
	return ir, nil
}
