package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/quill/internal/config"
	"github.com/ehrlich-b/quill/internal/coordinator"
	"github.com/ehrlich-b/quill/internal/logger"
	"github.com/ehrlich-b/quill/internal/roles"
	"github.com/ehrlich-b/quill/internal/store"
)

func main() {
	var configDir string

	root := &cobra.Command{
		Use:   "quilld <interval_ms>",
		Short: "quill coordinator — batches edits and broadcasts committed ticks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intervalMs, err := strconv.Atoi(args[0])
			if err != nil || intervalMs <= 0 {
				return fmt.Errorf("update interval must be a positive integer")
			}

			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.Init(cfg.LogLevel, cfg.LogFile, true); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			rt, err := roles.Load(cfg.RolesPath)
			if err != nil {
				return fmt.Errorf("load roles: %w", err)
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open audit store: %w", err)
			}
			defer st.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := rt.Watch(ctx.Done()); err != nil {
				logger.Warn("roles watch unavailable", "error", err)
			}

			coord := coordinator.New(cfg, time.Duration(intervalMs)*time.Millisecond, rt, st)

			fmt.Printf("Server PID: %d\n", os.Getpid())

			go coord.RunOperator(ctx, cancel, os.Stdin, os.Stdout)

			return coord.Run(ctx)
		},
	}

	root.Flags().StringVar(&configDir, "config-dir", ".", "directory containing quill.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
