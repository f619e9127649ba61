// Package docs registers the OpenAPI description of the socdash HTTP API
// with swag so that http-swagger can serve it under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Dependency health",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "All dependencies up"},
                    "503": {"description": "At least one dependency down"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["system"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Metrics exposition"}}
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Exchange credentials for a JWT",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/chatbot": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "Send a message to the chatbot",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "Chat reply", "schema": {"$ref": "#/definitions/ChatResponse"}},
                    "400": {"description": "Empty or oversized message", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Tool or model failure", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/chatbot/ws": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "Chat over a websocket",
                "description": "Each text frame carries a ChatRequest and is answered with a ChatResponse. The token may be passed as the token query parameter.",
                "parameters": [
                    {"in": "query", "name": "sessionId", "type": "string"},
                    {"in": "query", "name": "token", "type": "string"}
                ],
                "responses": {"101": {"description": "Switching protocols"}}
            }
        },
        "/api/chatbot/help": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "General help text",
                "produces": ["application/json"],
                "responses": {"200": {"description": "Help text"}}
            }
        },
        "/api/chatbot/help/{topic}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "Help for one topic",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "topic", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "Help text"}}
            }
        },
        "/api/chatbot/history/{sessionId}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "Conversation history of a session",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "sessionId", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "Turns, oldest first"}}
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["chatbot"],
                "summary": "Clear a session's history",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "sessionId", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "History cleared"}}
            }
        },
        "/api/chatbot/tools": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["tools"],
                "summary": "List the query tools",
                "produces": ["application/json"],
                "responses": {"200": {"description": "Tool descriptors"}}
            }
        },
        "/api/chatbot/tools/{name}": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["tools"],
                "summary": "Execute a query tool directly",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "name", "required": true, "type": "string"},
                    {"in": "body", "name": "arguments", "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Tool result"},
                    "400": {"description": "Invalid arguments", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Unknown tool", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/telegram/alert": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["telegram"],
                "summary": "Relay an alert group to Telegram",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "alert", "required": true, "schema": {"$ref": "#/definitions/TelegramAlert"}}
                ],
                "responses": {
                    "200": {"description": "Message sent"},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Relay not configured or breaker open", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/alert": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["telegram"],
                "summary": "Relay an alert group to Telegram",
                "description": "Alias of POST /api/telegram/alert.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "alert", "required": true, "schema": {"$ref": "#/definitions/TelegramAlert"}}
                ],
                "responses": {
                    "200": {"description": "Message sent"},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Relay not configured or breaker open", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/alerts": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["alerts"],
                "summary": "Page through alerts",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "severity", "type": "string"},
                    {"in": "query", "name": "from", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "to", "type": "string", "format": "date-time"}
                ],
                "responses": {"200": {"description": "Paginated alerts"}}
            }
        },
        "/api/alerts/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["alerts"],
                "summary": "Alert counts by severity and status",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "hours", "type": "integer"}
                ],
                "responses": {"200": {"description": "Statistics"}}
            }
        },
        "/api/alerts/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["alerts"],
                "summary": "One alert by ID",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Alert"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/reports/summary": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["alerts"],
                "summary": "Stats, top attackers and recent critical alerts",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "hours", "type": "integer"}
                ],
                "responses": {"200": {"description": "Summary report"}}
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string", "maxLength": 64},
                "password": {"type": "string", "maxLength": 128},
                "otp": {"type": "string", "description": "six digit code, required when a TOTP secret is configured"}
            }
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "ChatMessage": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["user", "assistant"]},
                "content": {"type": "string"}
            }
        },
        "ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "message": {"type": "string"},
                "history": {"type": "array", "items": {"$ref": "#/definitions/ChatMessage"}},
                "sessionId": {"type": "string"}
            }
        },
        "ChatResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "response": {"type": "string"},
                "toolUsed": {"type": "string", "x-nullable": true},
                "timestamp": {"type": "string", "format": "date-time"},
                "sessionId": {"type": "string"}
            }
        },
        "TelegramAlert": {
            "type": "object",
            "required": ["groupId", "summary"],
            "properties": {
                "groupId": {"type": "string", "maxLength": 64},
                "summary": {"type": "string", "maxLength": 2000},
                "titles": {"type": "array", "maxItems": 100, "items": {"type": "string", "maxLength": 500}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "Bearer token from /api/auth/login",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "socdash API",
	Description:      "SOC dashboard backend: chatbot, alert queries and Telegram relay",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
