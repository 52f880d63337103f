package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/logger"
)

// Server wraps the HTTP server and the account service
type Server struct {
	accounts *AccountServer
}

// NewServer creates a new server over the given engine
func NewServer(engine *lifecycle.Engine, authorize bool) *Server {
	return &Server{
		accounts: NewAccountServer(engine, authorize),
	}
}

// Handler returns the HTTP handler for the server. Extra interceptors, such as tracing,
// run after request logging.
func (s *Server) Handler(log zerolog.Logger, interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Register account service
	accountPath, accountHandler := accountv1.NewAccountServiceHandler(
		s.accounts,
		connect.WithInterceptors(
			append([]connect.Interceptor{logger.NewConnectRequests(log)}, interceptors...)...,
		),
	)
	mux.Handle(accountPath, accountHandler)

	return mux
}
