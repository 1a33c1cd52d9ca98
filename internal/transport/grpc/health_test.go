package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/abgdnv/cartsync/pkg/server"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	hs := NewHealthServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := server.NewGRPCServer(false, hs.Register)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return hs, healthpb.NewHealthClient(conn)
}

func TestHealthServer_FollowsBreakerState(t *testing.T) {
	testCases := []struct {
		name         string
		transitions  [][2]gobreaker.State
		expectedCode healthpb.HealthCheckResponse_ServingStatus
	}{
		{
			name:         "serving initially",
			expectedCode: healthpb.HealthCheckResponse_SERVING,
		},
		{
			name:         "not serving while open",
			transitions:  [][2]gobreaker.State{{gobreaker.StateClosed, gobreaker.StateOpen}},
			expectedCode: healthpb.HealthCheckResponse_NOT_SERVING,
		},
		{
			name: "serving again when half open",
			transitions: [][2]gobreaker.State{
				{gobreaker.StateClosed, gobreaker.StateOpen},
				{gobreaker.StateOpen, gobreaker.StateHalfOpen},
			},
			expectedCode: healthpb.HealthCheckResponse_SERVING,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			hs, client := startHealthServer(t)
			for _, tr := range tc.transitions {
				hs.OnBreakerStateChange("cart-service", tr[0], tr[1])
			}

			// when
			res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: GatewayService})

			// then
			require.NoError(t, err)
			require.Equal(t, tc.expectedCode, res.GetStatus())

			overall, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
			require.NoError(t, err)
			require.Equal(t, healthpb.HealthCheckResponse_SERVING, overall.GetStatus())
		})
	}
}

func TestHealthServer_Shutdown(t *testing.T) {
	// given
	hs, client := startHealthServer(t)

	// when
	hs.Shutdown()

	// then
	res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: GatewayService})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())
}
