// Package core defines the domain model shared by socdash packages.
//
// # Overview
//
// The core package provides:
//   - Alert rows as read from the ClickHouse alerts table
//   - Aggregates built on top of them (AlertStats, Attacker)
//   - Chatbot conversation types (ChatMessage, ChatTurn)
//   - Sentinel errors that the HTTP layer maps to status codes
//   - A circuit breaker used in front of outbound integrations
//
// Packages that consume storage declare the narrow interfaces they need
// themselves (see mcp.AlertQuerier and api.AlertReader) and accept
// concrete *storage types through them.
package core
