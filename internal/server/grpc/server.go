// Package grpc serves the internal gRPC endpoint: the standard health
// service, reporting database reachability, behind a chain of logging and
// session-checking interceptors.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name that tracks the database.
const ServiceName = "budget.Database"

const defaultPingInterval = 15 * time.Second

type SessionChecker interface {
	CheckAndParseSession(ctx context.Context, header string) (*models.Session, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type GRPCServer struct {
	address      string
	logger       logging.Logger
	sessions     SessionChecker
	pinger       Pinger
	pingInterval time.Duration
	health       *health.Server
}

func NewGRPCServer(address string, logger logging.Logger, sessions SessionChecker, pinger Pinger) *GRPCServer {
	return &GRPCServer{
		address:      address,
		logger:       logger.With("module", "grpc_server"),
		sessions:     sessions,
		pinger:       pinger,
		pingInterval: defaultPingInterval,
		health:       health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.requestInfoInterceptor,
		s.loggingInterceptor,
		s.sessionInterceptor,
	))

	healthpb.RegisterHealthServer(srv, s.health)

	go s.watchDatabase(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// watchDatabase pings the database on every tick and publishes the result
// under ServiceName and the overall ("") service.
func (s *GRPCServer) watchDatabase(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		s.checkDatabase(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) checkDatabase(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn(ctx, "database ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
}
