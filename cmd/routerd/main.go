package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	api "slotrouter/internal/http"
	"slotrouter/pkg/cluster"
	"slotrouter/pkg/config"
	"slotrouter/pkg/listener"
	"slotrouter/pkg/metrics"
)

const zkConnectTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := os.Getenv("ROUTERD_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := initConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", path, err)
		os.Exit(1)
	}
	initLogger(&cfg)

	registry := metrics.NewRegistry()
	topology := cluster.NewTopology(
		cluster.WithReplicaReads(cfg.Cluster.ReadFromReplicas),
		cluster.WithMetrics(registry),
	)
	if len(cfg.Cluster.Slots) > 0 {
		topology.Refresh(cfg.Cluster.Slots)
	}

	// --- ZooKeeper как источник топологии ---
	if zkc := cfg.Cluster.ZooKeeper; zkc.Enabled() {
		stop, err := watchZooKeeper(ctx, zkc, topology)
		if err != nil {
			slog.Error("failed to start ZooKeeper topology source", "error", err)
			os.Exit(1)
		}
		defer stop()
	}

	server := api.NewServer(topology, registry, strconv.Itoa(cfg.Server.Port), cfg.Server.ReadHeaderTimeout)
	if err := server.Start(); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("error stopping server", "error", err)
	}
	slog.Info("routerd stopped")
}

// watchZooKeeper applies every slot document published under zkc.Path to topology.
func watchZooKeeper(ctx context.Context, zkc config.ZooKeeperConfig, topology *cluster.Topology) (func(), error) {
	source, err := cluster.NewZKSource(zkc.Servers, zkc.Path, zkc.SessionTimeout)
	if err != nil {
		return nil, err
	}
	if err := source.WaitConnected(zkConnectTimeout); err != nil {
		_ = source.Close()
		return nil, err
	}

	updates := make(chan []cluster.Slot)
	apply := listener.New("zk-topology", updates, func(slots []cluster.Slot) error {
		topology.Refresh(slots)
		return nil
	}, func() {
		_ = source.Close()
	})

	apply.Start(ctx)
	source.RunWatch(ctx, updates)
	slog.Info("watching ZooKeeper topology", "servers", zkc.Servers, "path", zkc.Path)

	return apply.Stop, nil
}
