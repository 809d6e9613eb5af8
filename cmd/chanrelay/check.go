package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"chanrelay/internal/config"
	"chanrelay/internal/store"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run diagnostic checks on the configuration",
		Long: `Verifies that the settings file, channel table, state database and
metrics listener are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("chanrelay check v%s\n\n", version)

			var r checkResults

			cfg, found, err := config.LoadOrDefault(cfgPath)
			switch {
			case err != nil:
				r.fail("Config", err.Error())
				return r.summary()
			case !found:
				r.warn("Config", fmt.Sprintf("not found at %s, using defaults", cfgPath))
			default:
				r.pass("Config", cfgPath)
			}

			if cfg.Telegram.Token == "" {
				r.fail("Telegram token", "not set (telegram.token or CHANRELAY_TELEGRAM_TOKEN)")
			} else {
				r.pass("Telegram token", "configured")
			}

			mapping, err := config.ReadChannels(cfg.Relay.ChannelsFile)
			switch {
			case err != nil:
				r.fail("Channels", err.Error())
			case mapping.Len() == 0:
				r.warn("Channels", fmt.Sprintf("%s lists no channels", cfg.Relay.ChannelsFile))
			default:
				r.pass("Channels", fmt.Sprintf("%d channel(s) in %s", mapping.Len(), cfg.Relay.ChannelsFile))
			}

			if cfg.State.DBPath == "" {
				r.warn("State", "in memory; watermarks reset on restart")
			} else if err := checkDatabase(cfg.State.DBPath); err != nil {
				r.fail("State", err.Error())
			} else {
				r.pass("State", cfg.State.DBPath)
			}

			if cfg.Metrics.Enabled {
				if err := checkListen(cfg.Metrics.Listen); err != nil {
					r.warn("Metrics listen", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err))
				} else {
					r.pass("Metrics listen", cfg.Metrics.Listen)
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			return r.summary()
		},
	}
}

type checkResults struct {
	passed, warned, failed int
}

func (r *checkResults) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-16s %s\n", check, detail)
}

func (r *checkResults) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-16s %s\n", check, detail)
}

func (r *checkResults) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-16s %s\n", check, detail)
}

func (r *checkResults) summary() error {
	fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

// checkDatabase opens the state store, which runs pending migrations, and
// reads back a watermark.
func checkDatabase(dbPath string) error {
	st, err := store.NewSQLiteStore(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := st.Watermark(ctx, "_check"); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
