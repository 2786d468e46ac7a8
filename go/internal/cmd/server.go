package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/karmahq/questline/go/internal/session"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// JSON API and websocket gateway
	services.API.RegisterRoutes(mux)
	services.WebSocket.RegisterRoutes(mux)

	// Outbox delivery metrics
	mux.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))

	// Session cookie check, then CORS
	handler := c.Handler(session.Middleware(mux))

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", services.cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}
