package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"site-e2e/internal/static"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		root  = flag.String("root", getenvDefault("SITESERVER_ROOT", "dist"), "directory with the built site")
		addr  = flag.String("addr", getenvDefault("SITESERVER_ADDR", "localhost:3000"), "listen address")
		index = flag.String("index", "index.html", "file served at /")
	)
	flag.Parse()

	log := logrus.New()

	// Fail-fast: sin build no hay nada que servir. Se valida antes de
	// abrir el puerto para que el orquestador falle de inmediato.
	if err := static.CheckBuild(*root, *index); err != nil {
		log.Fatalf("build output missing: %v", err)
	}

	h, err := static.New(*root, *index, log)
	if err != nil {
		log.Fatalf("init handler: %v", err)
	}

	srv := &http.Server{Addr: *addr, Handler: static.NewRouter(h)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.WithFields(logrus.Fields{"addr": *addr, "root": *root}).Info("site server listening")

	select {
	case err := <-errc:
		log.Fatalf("listen failed: %v", err)
	case <-ctx.Done():
		// cierre ordenado: el orquestador termina el subproceso con
		// SIGTERM al acabar la corrida
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}
