package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// CheckStage describes where a health check failed.
type CheckStage string

const (
	CheckStageConnect CheckStage = "connect"
	CheckStageHealth  CheckStage = "health"
)

// CheckError wraps health check failures with the stage that failed.
type CheckError struct {
	Stage CheckStage
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// ClientOptions returns the dial options for in-network clients. The stats
// handler propagates trace context when a tracer provider is registered.
func ClientOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// CheckHealth connects to addr and waits up to timeout for service to report
// SERVING. The connection is always closed.
func CheckHealth(ctx context.Context, addr, service string, timeout time.Duration, logf func(string, ...any)) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		return &CheckError{Stage: CheckStageConnect, Err: err}
	}
	defer conn.Close()
	if err := WaitForHealth(ctx, conn, service, logf); err != nil {
		return &CheckError{Stage: CheckStageHealth, Err: err}
	}
	return nil
}
