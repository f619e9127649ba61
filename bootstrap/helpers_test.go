package bootstrap

import (
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		service  string
		contains string
	}{
		{
			name:     "timeout",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}},
			service:  "ClickHouse",
			contains: "timed out",
		},
		{
			name:     "refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			service:  "Redis",
			contains: "docker compose up -d redis",
		},
		{
			name:     "refused in wrapped text",
			err:      errors.New("failed to ping redis at localhost:6379: dial tcp: connection refused"),
			service:  "Redis",
			contains: "Connection refused by Redis",
		},
		{
			name:     "dns",
			err:      errors.New("dial tcp: lookup clickhouse.internal: no such host"),
			service:  "ClickHouse",
			contains: "Cannot resolve hostname",
		},
		{
			name:     "auth",
			err:      errors.New("code: 516, message: default: Authentication failed"),
			service:  "ClickHouse",
			contains: "SOCDASH_CLICKHOUSE_PASSWORD",
		},
		{
			name:     "other",
			err:      errors.New("unexpected packet"),
			service:  "ClickHouse",
			contains: "Failed to connect to ClickHouse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyConnectionError(tt.err, tt.service, "localhost:9000")
			assert.Contains(t, result, tt.contains)
		})
	}

	assert.Empty(t, ClassifyConnectionError(nil, "ClickHouse", "localhost:9000"))
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s        string
		substr   string
		expected bool
	}{
		{"Hello World", "hello", true},
		{"Hello World", "WORLD", true},
		{"Hello World", "xyz", false},
		{"", "", true},
		{"abc", "", true},
		{"", "abc", false},
		{"ECONNREFUSED", "econnrefused", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"_"+tt.substr, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsIgnoreCase(tt.s, tt.substr))
		})
	}
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "localhost 9000", hostOf("localhost:9000"))
	assert.Equal(t, "clickhouse", hostOf("clickhouse"))
}
