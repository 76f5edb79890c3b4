package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockboard/blockboard/internal/config"
	"github.com/blockboard/blockboard/internal/server"
	"github.com/blockboard/blockboard/internal/svc"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blockboard",
		Short: "Personal blocking-configuration dashboard",
		Long: `blockboard serves the local dashboard for editing blocking rules,
managing presets, and supervising the enforcement agent.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("auth.accessSecret must be set (config or BLOCKBOARD_ACCESS_SECRET env)")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal: %v - shutting down...\n", sig)
		cancel()
	}()

	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		return err
	}
	defer svcCtx.Close()
	svcCtx.Version = Version

	return server.Run(ctx, c, server.ServerOptions{
		SvcCtx:     svcCtx,
		ConfigPath: configPath,
	})
}
