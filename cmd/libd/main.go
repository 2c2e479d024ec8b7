package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/druglib/internal/common"
	"example.com/druglib/internal/config"
	"example.com/druglib/internal/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	strict := flag.Bool("strict", false, "reject descriptors with unresolved node references")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := os.MkdirAll(cfg.Server.StorageDir, 0o755); err != nil {
		log.Fatalf("storage dir: %v", err)
	}
	logs, err := common.SetupLogging(cfg.Logs.LogOptions("libd.log"))
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logs.Close()

	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if *addr != "" {
		listenAddr = *addr
	}
	srv, err := server.NewServer(server.Options{
		StorageDir:       cfg.Server.StorageDir,
		Concurrency:      cfg.Server.Concurrency,
		StrictReferences: cfg.Strict || *strict,
		PDF:              cfg.Report.PDF,
		QRSize:           cfg.Report.QRSize,
	})
	if err != nil {
		common.Fatalf("server init: %v", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(srv),
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}

	common.Logf("libd listening on %s (storage %s, concurrency %d)", listenAddr, cfg.Server.StorageDir, cfg.Server.Concurrency)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		common.Logf("shutdown: %v", err)
	}
	common.Logf("libd stopped")
}
