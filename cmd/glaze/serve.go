package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aellingwood/glaze/internal/cache"
	"github.com/aellingwood/glaze/internal/codec"
	"github.com/aellingwood/glaze/internal/config"
	"github.com/aellingwood/glaze/internal/fetch"
	"github.com/aellingwood/glaze/internal/optimizer"
	"github.com/aellingwood/glaze/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the image optimization server",
	Long:  "Start the HTTP server that transforms and caches images on demand.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load config.
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// 2. Read CLI flags.
		port, _ := cmd.Flags().GetInt("port")
		bind, _ := cmd.Flags().GetString("bind")
		dev, _ := cmd.Flags().GetBool("dev")
		verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

		overrides := map[string]any{}
		if cmd.Flags().Changed("port") {
			overrides["port"] = port
		}
		if cmd.Flags().Changed("bind") {
			overrides["bind"] = bind
		}
		cfg = cfg.WithOverrides(overrides)

		// 3. Wire the pipeline.
		store := cache.NewStore(cfg.Cache.Root)
		engine := codec.Select(cfg.Images.Codec)
		remote := fetch.NewRemote(cfg.FetchTimeout())
		local := fetch.NewLocal(cfg.Static.Root, cfg.Static.MaxAge)

		if verbose {
			log.Printf("codec engine: %s, cache root: %s", engine.Name(), cfg.Cache.Root)
		}

		opt := optimizer.New(cfg, store, remote, local, engine, optimizer.Options{Dev: dev})
		srv := server.NewServer(cfg, opt, server.ServeOptions{Dev: dev, Verbose: verbose})
		if dev {
			opt.SetEvents(srv.Hub())
		}

		// 4. In dev mode, purge the cache whenever static sources change.
		if dev {
			watcher := server.NewWatcher([]string{cfg.Static.Root}, 100*time.Millisecond, func() {
				log.Println("Change detected, purging image cache...")
				if err := store.Purge(); err != nil {
					log.Printf("Purge failed: %v", err)
					return
				}
				srv.Hub().Publish("purge")
			})
			srv.SetWatcher(watcher)
		}

		// 5. Handle graceful shutdown.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nShutting down...")
			cancel()
		}()

		// 6. Start the server (blocks until shutdown).
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	},
}

// loadConfig loads the config file if it exists, or falls back to
// defaults so the server runs without one.
func loadConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func init() {
	serveCmd.Flags().Int("port", 3000, "server port")
	serveCmd.Flags().String("bind", "localhost", "bind address")
	serveCmd.Flags().Bool("dev", false, "dev mode: disable client caching, watch static files")

	rootCmd.AddCommand(serveCmd)
}
