package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"socdash/core"
	"socdash/metrics"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AlertQuerier is the subset of alert storage the tools run against
type AlertQuerier interface {
	GetRecentAlerts(ctx context.Context, limit int, severity string) ([]core.Alert, error)
	GetAlertStatistics(ctx context.Context, since time.Time) (*core.AlertStats, error)
	SearchAlertsByIP(ctx context.Context, ip string, limit int) ([]core.Alert, error)
	GetTopAttackers(ctx context.Context, since time.Time, limit int) ([]core.Attacker, error)
}

// ToolResult is the outcome of a tool execution
type ToolResult struct {
	Tool       string                 `json:"tool"`
	Arguments  map[string]interface{} `json:"arguments"`
	Data       interface{}            `json:"data"`
	Count      int                    `json:"count"`
	ExecutedAt time.Time              `json:"executedAt"`
}

// Service validates tool arguments and dispatches them to parameterized queries
type Service struct {
	querier AlertQuerier
	schemas map[string]*gojsonschema.Schema
	logger  *zap.SugaredLogger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService compiles the manifest schemas and returns a ready service
func NewService(querier AlertQuerier, logger *zap.SugaredLogger) (*Service, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(manifest))
	for _, tool := range manifest {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(tool.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for tool %s: %w", tool.Name, err)
		}
		schemas[tool.Name] = schema
	}

	return &Service{
		querier: querier,
		schemas: schemas,
		logger:  logger,
		tracer:  otel.Tracer("socdash/mcp"),
		now:     time.Now,
	}, nil
}

// Tools returns the manifest served by this service
func (s *Service) Tools() []Tool {
	return Tools()
}

// Execute runs the named tool. Unknown names wrap core.ErrUnknownTool and
// arguments rejected by the tool schema wrap core.ErrInvalidArgument.
func (s *Service) Execute(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	schema, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	ctx, span := s.tracer.Start(ctx, "mcp.execute",
		trace.WithAttributes(attribute.String("mcp.tool", name)))
	defer span.End()

	if err := validateArgs(schema, args); err != nil {
		metrics.ToolExecutions.WithLabelValues(name, "invalid").Inc()
		span.SetStatus(codes.Error, "invalid arguments")
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidArgument, name, err)
	}

	start := time.Now()
	result, err := s.dispatch(ctx, name, args)
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ToolExecutions.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		s.logger.Errorw("Tool execution failed",
			"tool", name,
			"arguments", args,
			"error", err)
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}

	metrics.ToolExecutions.WithLabelValues(name, "success").Inc()
	span.SetAttributes(attribute.Int("mcp.result_count", result.Count))
	s.logger.Debugw("Tool executed",
		"tool", name,
		"arguments", result.Arguments,
		"count", result.Count,
		"duration", time.Since(start))
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	now := s.now()
	result := &ToolResult{Tool: name, ExecutedAt: now.UTC()}

	switch name {
	case ToolGetRecentAlerts:
		limit := intArg(args, "limit", DefaultRecentLimit)
		severity, _ := args["severity"].(string)
		alerts, err := s.querier.GetRecentAlerts(ctx, limit, severity)
		if err != nil {
			return nil, err
		}
		result.Arguments = map[string]interface{}{"limit": limit}
		if severity != "" {
			result.Arguments["severity"] = severity
		}
		result.Data, result.Count = alerts, len(alerts)

	case ToolGetAlertStatistics:
		hours := intArg(args, "hours", DefaultHours)
		stats, err := s.querier.GetAlertStatistics(ctx, now.Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			return nil, err
		}
		result.Arguments = map[string]interface{}{"hours": hours}
		result.Data, result.Count = stats, int(stats.Total)

	case ToolSearchAlertsByIP:
		ip := strings.TrimSpace(args["ip"].(string))
		limit := intArg(args, "limit", DefaultIPSearchLimit)
		alerts, err := s.querier.SearchAlertsByIP(ctx, ip, limit)
		if err != nil {
			return nil, err
		}
		result.Arguments = map[string]interface{}{"ip": ip, "limit": limit}
		result.Data, result.Count = alerts, len(alerts)

	case ToolGetTopAttackers:
		limit := intArg(args, "limit", DefaultTopLimit)
		hours := intArg(args, "hours", DefaultHours)
		attackers, err := s.querier.GetTopAttackers(ctx, now.Add(-time.Duration(hours)*time.Hour), limit)
		if err != nil {
			return nil, err
		}
		result.Arguments = map[string]interface{}{"limit": limit, "hours": hours}
		result.Data, result.Count = attackers, len(attackers)
	}

	return result, nil
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// intArg reads a schema-validated integer argument that may arrive as a Go
// int (intent detection) or a float64/json.Number (decoded JSON)
func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}
