// Package server hosts the token endpoint, the discovery documents and the
// operational routes over plain net/http.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/oakgrove/go-token-server/exchange"
	"github.com/oakgrove/go-token-server/internal/config"
	"github.com/oakgrove/go-token-server/token"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "production")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	exchange *exchange.Service
	issuer   *token.Issuer
	logger   zerolog.Logger
}

// ServerOption modifies the Server configuration.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg config.Config, exchangeService *exchange.Service, issuer *token.Issuer, options ...ServerOption) (*Server, error) {
	if exchangeService == nil {
		return nil, fmt.Errorf("[Server New] exchange service is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("[Server New] token issuer is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		exchange: exchangeService,
		issuer:   issuer,
		logger:   zerolog.Nop(),
	}
	s.env = cfg.GetEnv()
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
