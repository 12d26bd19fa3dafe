package restmachinery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/krancour/identity/internal/file"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 10 * time.Second

// Server is an interface for the component that responds to HTTP API requests
type Server interface {
	// ListenAndServe causes the API server to start serving HTTP requests. It
	// will block until the context is canceled or an error occurs. It returns
	// nil only when the server was shut down because the context was canceled.
	ListenAndServe(ctx context.Context) error
	// Handler returns the server's root http.Handler.
	Handler() http.Handler
}

type server struct {
	*BaseEndpoints // The server itself exposes health check endpoints
	config         Config
	handler        http.Handler
}

// NewServer returns a REST API server
func NewServer(config Config, endpoints []Endpoints) Server {
	router := mux.NewRouter()
	router.StrictSlash(true)

	for _, eps := range endpoints {
		eps.Register(router)
	}

	s := &server{
		BaseEndpoints: &BaseEndpoints{},
		config:        config,
		handler: cors.New(
			cors.Options{
				AllowedMethods: []string{"DELETE", "GET", "POST", "PUT"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
			},
		).Handler(router),
	}

	// Health check
	router.HandleFunc(
		"/healthz",
		s.checkHealth, // No filters applied to this request
	).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

func (s *server) Handler() http.Handler {
	return s.handler
}

func (s *server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	if s.config.TLSEnabled() &&
		file.Exists(s.config.TLSCertPath()) &&
		file.Exists(s.config.TLSKeyPath()) {
		glog.Infof(
			"API server is listening with TLS enabled on 0.0.0.0:%d",
			s.config.Port(),
		)
		srv.Handler = s.handler
		go func() {
			errCh <- srv.ListenAndServeTLS(
				s.config.TLSCertPath(),
				s.config.TLSKeyPath(),
			)
		}()
	} else {
		glog.Infof(
			"API server is listening without TLS on 0.0.0.0:%d",
			s.config.Port(),
		)
		srv.Handler = h2c.NewHandler(s.handler, &http2.Server{})
		go func() {
			errCh <- srv.ListenAndServe()
		}()
	}
	select {
	case err := <-errCh:
		return errors.Wrap(err, "API server stopped")
	case <-ctx.Done():
	}
	glog.Info("API server is shutting down")
	shutdownCtx, cancel :=
		context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(
		srv.Shutdown(shutdownCtx),
		"error shutting down API server",
	)
}

func (s *server) checkHealth(w http.ResponseWriter, r *http.Request) {
	s.ServeRequest(
		InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				return struct{}{}, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}
