package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/usagelord/pkg/api"
	"github.com/rmax-ai/usagelord/pkg/engine"
	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/provider/claude"
	"github.com/rmax-ai/usagelord/pkg/provider/codex"
	"github.com/rmax-ai/usagelord/pkg/store"
	redispub "github.com/rmax-ai/usagelord/pkg/store/redis"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"usagelord-d"}`)

	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_load_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(config.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", config.DBPath)

	providers, err := buildProviders(config)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_build_providers","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	poller := engine.NewPoller(st, config.PollInterval)
	for _, prov := range providers {
		poller.Register(prov)
	}

	if config.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: config.RedisAddr})
		poller.SetPublisher(redispub.NewPublisher(client))
		fmt.Printf(`{"level":"info","msg":"redis_mirroring_enabled","addr":"%s"}`+"\n", config.RedisAddr)
	}

	server := api.NewServer(st, providers, config.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Start(ctx)
	go func() {
		if err := server.Start(); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
	}()

	// Handle SIGINT/SIGTERM for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}

func buildProviders(config Config) ([]provider.Provider, error) {
	var providers []provider.Provider
	for _, name := range config.Providers {
		switch name {
		case "codex":
			providers = append(providers, codex.New(config.ProbeTimeout))
		case "claude":
			providers = append(providers, claude.New(config.ProbeTimeout))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return providers, nil
}
