package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"

	platformgrpc "github.com/louisbranch/dragondice/internal/platform/grpc"
	"github.com/louisbranch/dragondice/internal/platform/timeouts"
	"github.com/louisbranch/dragondice/internal/services/engine/api/ws"
	"github.com/louisbranch/dragondice/internal/services/engine/seat"
	enginesqlite "github.com/louisbranch/dragondice/internal/services/engine/storage/sqlite"
)

// HealthService is the gRPC health name the engine reports under.
const HealthService = "dragondice.engine"

// Config defines the inputs for the engine process.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	// DBPath locates the notification journal. Empty disables journaling.
	DBPath   string
	MaxConns int
	// Seats verifies seat grants; nil trusts the player query parameter.
	Seats             *seat.Config
	OriginPatterns    []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the table WebSocket endpoint and the gRPC health service.
type Server struct {
	Tables *Tables

	httpLn     net.Listener
	grpcLn     net.Listener
	httpServer *http.Server
	grpcServer *gogrpc.Server
	health     *health.Server
	store      *enginesqlite.Store
	shutdown   time.Duration
	closeOnce  sync.Once
}

// NewServer opens the journal and binds both listeners.
func NewServer(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	s := &Server{shutdown: cfg.ShutdownTimeout}
	var err error
	if cfg.DBPath != "" {
		if s.store, err = openStore(ctx, cfg.DBPath); err != nil {
			return nil, err
		}
		s.Tables = NewTables(s.store, opts...)
	} else {
		s.Tables = NewTables(nil, opts...)
	}

	s.httpLn, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.MaxConns > 0 {
		s.httpLn = netutil.LimitListener(s.httpLn, cfg.MaxConns)
	}
	wsCfg := ws.Config{Tables: s.Tables, Seats: cfg.Seats, OriginPatterns: cfg.OriginPatterns}
	if s.store != nil {
		wsCfg.Journal = s.store
	}
	s.httpServer = &http.Server{
		Handler:           ws.NewHandler(wsCfg),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	if strings.TrimSpace(cfg.GRPCAddr) != "" {
		s.grpcLn, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
		}
		s.grpcServer = gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = platformgrpc.RegisterHealth(s.grpcServer, HealthService)
	}
	return s, nil
}

func openStore(ctx context.Context, path string) (*enginesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	store, err := enginesqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

// HTTPAddr returns the bound WebSocket address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// GRPCAddr returns the bound health address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcLn == nil {
		return ""
	}
	return s.grpcLn.Addr().String()
}

// Serve runs both servers until ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	g, ctx := errgroup.WithContext(ctx)
	log.Printf("engine tables listening at %v", s.httpLn.Addr())
	g.Go(func() error {
		if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if s.grpcServer != nil {
		log.Printf("engine health listening at %v", s.grpcLn.Addr())
		g.Go(func() error {
			if err := s.grpcServer.Serve(s.grpcLn); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		if s.health != nil {
			s.health.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.httpLn != nil {
			_ = s.httpLn.Close()
		}
		if s.grpcLn != nil {
			_ = s.grpcLn.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("close journal: %v", err)
			}
		}
	})
}
