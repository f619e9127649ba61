package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"socdash/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// MockAlertQuerier is a mock implementation of AlertQuerier
type MockAlertQuerier struct {
	mock.Mock
}

func (m *MockAlertQuerier) GetRecentAlerts(ctx context.Context, limit int, severity string) ([]core.Alert, error) {
	args := m.Called(ctx, limit, severity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Alert), args.Error(1)
}

func (m *MockAlertQuerier) GetAlertStatistics(ctx context.Context, since time.Time) (*core.AlertStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.AlertStats), args.Error(1)
}

func (m *MockAlertQuerier) SearchAlertsByIP(ctx context.Context, ip string, limit int) ([]core.Alert, error) {
	args := m.Called(ctx, ip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Alert), args.Error(1)
}

func (m *MockAlertQuerier) GetTopAttackers(ctx context.Context, since time.Time, limit int) ([]core.Attacker, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Attacker), args.Error(1)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MockAlertQuerier) {
	t.Helper()
	q := &MockAlertQuerier{}
	svc, err := NewService(q, zap.NewNop().Sugar())
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc, q
}

func TestTools_Manifest(t *testing.T) {
	tools := Tools()
	require.Len(t, tools, 4)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)

		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal(tool.InputSchema, &schema), tool.Name)
		assert.Equal(t, "object", schema["type"])
	}
	assert.Equal(t, []string{ToolGetRecentAlerts, ToolGetAlertStatistics, ToolSearchAlertsByIP, ToolGetTopAttackers}, names)

	_, ok := Lookup(ToolSearchAlertsByIP)
	assert.True(t, ok)
	_, ok = Lookup("drop_tables")
	assert.False(t, ok)
}

func TestExecute_RecentAlertsDefaults(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	alerts := []core.Alert{{AlertID: "a1"}, {AlertID: "a2"}}
	q.On("GetRecentAlerts", mock.Anything, DefaultRecentLimit, "").Return(alerts, nil)

	res, err := svc.Execute(ctx, ToolGetRecentAlerts, nil)
	require.NoError(t, err)
	assert.Equal(t, ToolGetRecentAlerts, res.Tool)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, alerts, res.Data)
	assert.Equal(t, map[string]interface{}{"limit": DefaultRecentLimit}, res.Arguments)
	q.AssertExpectations(t)
}

func TestExecute_RecentAlertsFromJSONArgs(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	q.On("GetRecentAlerts", mock.Anything, 5, "critical").Return([]core.Alert{}, nil)

	var args map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"limit": 5, "severity": "critical"}`), &args))

	res, err := svc.Execute(ctx, ToolGetRecentAlerts, args)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	q.AssertExpectations(t)
}

func TestExecute_StatisticsWindow(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	stats := &core.AlertStats{Total: 7, BySeverity: map[string]uint64{"high": 7}}
	q.On("GetAlertStatistics", mock.Anything, fixedNow.Add(-168*time.Hour)).Return(stats, nil)

	res, err := svc.Execute(ctx, ToolGetAlertStatistics, map[string]interface{}{"hours": 168})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	assert.Same(t, stats, res.Data)
	q.AssertExpectations(t)
}

func TestExecute_SearchByIP(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	q.On("SearchAlertsByIP", mock.Anything, "10.0.0.5", DefaultIPSearchLimit).Return([]core.Alert{{AlertID: "a1"}}, nil)

	res, err := svc.Execute(ctx, ToolSearchAlertsByIP, map[string]interface{}{"ip": "10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "10.0.0.5", res.Arguments["ip"])
	q.AssertExpectations(t)
}

func TestExecute_TopAttackers(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	attackers := []core.Attacker{{IP: "1.2.3.4", AlertCount: 9}}
	q.On("GetTopAttackers", mock.Anything, fixedNow.Add(-24*time.Hour), 3).Return(attackers, nil)

	res, err := svc.Execute(ctx, ToolGetTopAttackers, map[string]interface{}{"limit": 3})
	require.NoError(t, err)
	assert.Equal(t, attackers, res.Data)
	assert.Equal(t, map[string]interface{}{"limit": 3, "hours": DefaultHours}, res.Arguments)
	q.AssertExpectations(t)
}

func TestExecute_InvalidArguments(t *testing.T) {
	svc, q := newTestService(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"limit too large", ToolGetRecentAlerts, map[string]interface{}{"limit": 1000}},
		{"limit zero", ToolGetTopAttackers, map[string]interface{}{"limit": 0}},
		{"fractional limit", ToolGetRecentAlerts, map[string]interface{}{"limit": 2.5}},
		{"unknown severity", ToolGetRecentAlerts, map[string]interface{}{"severity": "apocalyptic"}},
		{"unknown property", ToolGetAlertStatistics, map[string]interface{}{"table": "users"}},
		{"hours too large", ToolGetAlertStatistics, map[string]interface{}{"hours": 10000}},
		{"missing ip", ToolSearchAlertsByIP, map[string]interface{}{}},
		{"sql in ip", ToolSearchAlertsByIP, map[string]interface{}{"ip": "1.1.1.1' OR '1'='1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), tt.tool, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}
	q.AssertNotCalled(t, "GetRecentAlerts", mock.Anything, mock.Anything, mock.Anything)
	q.AssertNotCalled(t, "SearchAlertsByIP", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_UnknownTool(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Execute(context.Background(), "drop_tables", nil)
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestExecute_StorageError(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	dbErr := errors.New("connection reset")
	q.On("GetRecentAlerts", mock.Anything, DefaultRecentLimit, "").Return(nil, dbErr)

	_, err := svc.Execute(ctx, ToolGetRecentAlerts, map[string]interface{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, core.ErrInvalidArgument)
}

func TestIntArg(t *testing.T) {
	args := map[string]interface{}{
		"int":    7,
		"int64":  int64(8),
		"float":  9.0,
		"number": json.Number("10"),
		"string": "11",
	}
	assert.Equal(t, 7, intArg(args, "int", 1))
	assert.Equal(t, 8, intArg(args, "int64", 1))
	assert.Equal(t, 9, intArg(args, "float", 1))
	assert.Equal(t, 10, intArg(args, "number", 1))
	assert.Equal(t, 1, intArg(args, "string", 1))
	assert.Equal(t, 1, intArg(args, "missing", 1))
}

func TestExecute_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc, q := newTestService(t)
	svc.tracer = tp.Tracer("test")
	ctx := context.Background()

	q.On("SearchAlertsByIP", mock.Anything, "10.0.0.5", DefaultIPSearchLimit).
		Return([]core.Alert{{AlertID: "a1"}, {AlertID: "a2"}}, nil)
	_, err := svc.Execute(ctx, ToolSearchAlertsByIP, map[string]interface{}{"ip": "10.0.0.5"})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, ToolSearchAlertsByIP, map[string]interface{}{"ip": 42})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "mcp.execute", ok.Name())
	assert.Contains(t, ok.Attributes(), attribute.String("mcp.tool", ToolSearchAlertsByIP))
	assert.Contains(t, ok.Attributes(), attribute.Int("mcp.result_count", 2))
	assert.Equal(t, codes.Unset, ok.Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "invalid arguments", spans[1].Status().Description)
}
