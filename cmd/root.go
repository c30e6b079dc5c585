package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LocalFM/config"
	"LocalFM/core/app"
	"LocalFM/logger"

	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logLevel string
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "localfm",
	Short: "LocalFM is a local music library and player.",
	Long: `LocalFM 本地音乐库: 元数据文档 + 二进制资源存储 + 播放引擎.
Run "localfm serve" for the HTTP/websocket surface or use the subcommands
directly against the configured stores.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   cfg.LogCompress,
			Quiet:      quiet,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖 LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "不向标准输出写日志")
}

// Execute executes the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openApp builds the session context from the loaded config.
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if a.Report.Healed {
		fmt.Fprintf(os.Stderr, "warning: metadata was reset to defaults (%s)\n", a.Report.Reason)
	}
	return a, nil
}

// signIn logs user in when a username is given.
func signIn(ctx context.Context, a *app.App, username, password string) error {
	if username == "" {
		return nil
	}
	if _, err := a.Library.Login(ctx, username, password); err != nil {
		return err
	}
	return nil
}
