package storage

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	clickhouseImage          = "clickhouse/clickhouse-server:24.8"
	clickhouseNativePort     = "9000/tcp"
	clickhouseHTTPPort       = "8123/tcp"
	clickhouseContainerPass  = "testpassword"
	containerStartupDeadline = 2 * time.Minute
)

// startClickHouseContainer runs ClickHouse in Docker for the duration of the
// test and returns its native protocol address and password
func startClickHouseContainer(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        clickhouseImage,
		ExposedPorts: []string{clickhouseNativePort, clickhouseHTTPPort},
		Env: map[string]string{
			"CLICKHOUSE_DB":                        testClickHouseDatabase,
			"CLICKHOUSE_USER":                      testClickHouseUser,
			"CLICKHOUSE_PASSWORD":                  clickhouseContainerPass,
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
		},
		// the HTTP interface answers "Ok." once the server accepts queries
		WaitingFor: wait.ForHTTP("/").
			WithPort(clickhouseHTTPPort).
			WithStartupTimeout(containerStartupDeadline).
			WithResponseMatcher(func(body io.Reader) bool {
				buf, _ := io.ReadAll(body)
				return len(buf) > 0
			}),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start ClickHouse container")

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	port, err := container.MappedPort(ctx, clickhouseNativePort)
	require.NoError(t, err, "Failed to get mapped port")

	addr := net.JoinHostPort(host, port.Port())
	t.Logf("ClickHouse container started at %s", addr)
	return addr, clickhouseContainerPass
}
