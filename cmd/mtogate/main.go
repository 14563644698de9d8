package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mtogate/mtogate/internal/classify"
	"github.com/mtogate/mtogate/internal/config"
	"github.com/mtogate/mtogate/internal/status"
	"github.com/mtogate/mtogate/internal/store"
	"github.com/mtogate/mtogate/internal/syncer"
	"github.com/mtogate/mtogate/internal/upstream"
	"github.com/mtogate/mtogate/internal/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mtogate",
		Short: "Read-side MTO status gateway over a slow ERP upstream",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("config", "", "path to YAML config file")
	f.String("db-path", "mtogate.db", "path to the SQLite database")
	f.String("progress-path", "sync_progress.json", "path to the sync progress file")
	f.Int("listen-port", 8080, "HTTP port for the API")
	f.String("upstream-url", "", "base URL of the ERP form-query endpoint")
	f.String("upstream-account", "", "ERP account id")
	f.String("upstream-user", "", "ERP user name")
	f.String("upstream-app-id", "", "ERP app id")
	f.String("upstream-app-secret", "", "ERP app secret")

	// Bind flags to viper. Viper keys use underscores and dots so they match
	// the env var suffix after stripping the MTOGATE_ prefix.
	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("config", "config")
	bindFlag("db_path", "db-path")
	bindFlag("progress_path", "progress-path")
	bindFlag("listen_port", "listen-port")
	bindFlag("upstream.url", "upstream-url")
	bindFlag("upstream.account", "upstream-account")
	bindFlag("upstream.user", "upstream-user")
	bindFlag("upstream.app_id", "upstream-app-id")
	bindFlag("upstream.app_secret", "upstream-app-secret")

	viper.SetEnvPrefix("MTOGATE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	config.SetDefaults()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	cfg := config.Load()

	fmt.Printf("mtogate %s starting\n", config.Version)
	fmt.Printf("  Database: %s\n", cfg.DBPath)
	fmt.Printf("  Upstream: %s\n", cfg.Upstream.URL)
	fmt.Printf("  API: :%d\n", cfg.ListenPort)
	fmt.Printf("  Auto-sync: %t (%s)\n", cfg.AutoSyncEnabled, strings.Join(cfg.Schedule, ", "))
	fmt.Println()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close() //nolint:errcheck

	cls, err := classify.New(cfg.MaterialClasses)
	if err != nil {
		return fmt.Errorf("compile material classes: %w", err)
	}

	client := upstream.NewClient(cfg.Upstream)
	svc := status.New(cfg, st, client, cls)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := syncer.New(ctx, cfg, st, client)
	go syncer.NewScheduler(orch).Run(ctx)

	webServer := web.New(cfg, svc, orch, client)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Printf("web server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("received %s, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("web server shutdown: %v", err)
	}

	return nil
}
