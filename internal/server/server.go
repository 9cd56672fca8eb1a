package server

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/relations/internal/api/consumer"
	"github.com/Zereker/relations/internal/api/http"
	"github.com/Zereker/relations/pkg/log"
	"github.com/Zereker/relations/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Server runs the relations endpoint and the event ingestion pipeline.
type Server struct {
	config     Config
	logger     *slog.Logger
	store      store.Store
	closeStore func() error
	consumer   *consumer.Consumer
	http       *http.Server
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initConsumer(); err != nil {
		_ = server.Shutdown()
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	server.initHTTP()
	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	s.logger.Info("opening event store", "backend", s.config.Store.Backend)
	st, closeStore, err := store.Open(context.Background(), s.config.Store)
	if err != nil {
		return errors.WithMessage(err, "failed to open store")
	}
	s.store = st
	s.closeStore = closeStore

	return nil
}

// initConsumer initializes the Kafka ingestion consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.store, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	s.consumer = c
	return nil
}

func (s *Server) initHTTP() {
	read, write := s.config.Server.timeouts()
	s.http = http.NewServer(s.store, http.HandlerConfig{
		AccessTokens: s.config.Auth.AccessTokens,
		DefaultLimit: s.config.Pagination.DefaultLimit,
		MaxLimit:     s.config.Pagination.MaxLimit,
	}, http.ServerConfig{
		Host:         s.config.Server.Host,
		Port:         s.config.Server.Port,
		ReadTimeout:  read,
		WriteTimeout: write,
	})
}

// Start runs until SIGINT or SIGTERM, or until a component fails.
func (s *Server) Start() error {
	s.logger.Info("starting", "host", s.config.Server.Host, "port", s.config.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run runs the HTTP server and the consumer until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runHTTPServer(ctx)
	})

	g.Go(func() error {
		return s.runConsumer(ctx)
	})

	return g.Wait()
}

// Shutdown releases the store. Components started by Run stop with its context.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			s.logger.Error("failed to close store", "error", err)
			return err
		}
	}
	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(sctx); err != nil {
			s.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	if err := s.http.Start(); err != nil && ctx.Err() == nil {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil && ctx.Err() == nil {
		_ = s.consumer.Stop()
		return errors.WithMessage(err, "consumer start error")
	}

	<-ctx.Done()

	return s.consumer.Stop()
}
