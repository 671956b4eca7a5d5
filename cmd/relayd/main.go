package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relaynet-go/relaynet/config"
	"github.com/relaynet-go/relaynet/metrics"
	"github.com/relaynet-go/relaynet/pkg/logger"
	"github.com/relaynet-go/relaynet/server"
	"github.com/relaynet-go/relaynet/transport"
)

const version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RELAYD")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "relayd",
		Short: "Reliable UDP relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return run(v)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(v *viper.Viper) error {
	logger.Banner("Reliable Relay Daemon", version)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger.Info("bind address: %s", cfg.BindAddress)
	logger.Info("metrics address: %s", cfg.MetricsAddress)
	logger.Info("send rate: %d/s", cfg.Connection.SendRate)
	logger.Success("configuration loaded")

	socket, err := transport.Bind(cfg.BindAddress, cfg.Connection.PacketMaxSize)
	if err != nil {
		return err
	}

	m := metrics.New()
	go serveMetrics(cfg.MetricsAddress, m)

	srv := server.New(socket, cfg.Connection, server.NoopHandler{}, m, nil)

	errChan := make(chan struct{})
	go func() {
		defer close(errChan)
		srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-errChan:
		logger.Warn("server loop exited unexpectedly")
	case sig := <-sigChan:
		logger.Warn("received signal: %v", sig)
		logger.Info("shutting down gracefully...")
		srv.Stop()
		<-errChan
	}

	time.Sleep(100 * time.Millisecond)
	logger.Success("server stopped")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped: %v", err)
	}
}
