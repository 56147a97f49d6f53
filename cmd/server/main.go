package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/pairlink/pairlink/internal/logging"
	"github.com/pairlink/pairlink/internal/relay"
	"github.com/pairlink/pairlink/internal/rendezvous"
	"github.com/pairlink/pairlink/internal/server"
)

func main() {
	logging.Init()

	hub := relay.NewHub()
	go hub.Run()

	registry := rendezvous.NewRegistry()

	mux := server.NewMux(hub, registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	slog.Info("starting relay server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
