package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_chat_requests_total",
			Help: "Total number of chatbot requests by detected tool (none when no tool matched)",
		},
		[]string{"tool"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socdash_tool_duration_seconds",
			Help:    "Time taken to execute a tool query",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_llm_requests_total",
			Help: "Total number of LLM completion requests",
		},
		[]string{"status"},
	)

	TelegramMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_telegram_messages_total",
			Help: "Total number of Telegram relay messages",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socdash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socdash_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// APIPanicsRecovered counts handler panics turned into 500 responses
var APIPanicsRecovered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "socdash_api_panics_recovered_total",
		Help: "Total number of recovered panics in HTTP handlers",
	},
	[]string{"method", "route"},
)
