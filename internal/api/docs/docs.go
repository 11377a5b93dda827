// Package docs registers the swagger spec for Prism's admin HTTP surface
// with the swaggo runtime so /swagger/*any can serve it. The template below
// mirrors what `swag init` would emit from the handler doc comments in
// internal/api/handlers; it is hand-maintained here rather than generated.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Health check",
                "description": "Returns process liveness status. Always 200 once the process is up.",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["system"],
                "summary": "Readiness check",
                "description": "Returns 200 if the service can serve registrations, 503 if the database is unreachable.",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["system"],
                "summary": "Server statistics",
                "description": "Returns runtime statistics: system CPU/memory usage and aggregate registry counts.",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ServerStatsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.StatusResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "models.MemoryStats": {
            "type": "object",
            "properties": {
                "total_mb": {"type": "number"},
                "free_mb": {"type": "number"},
                "used_mb": {"type": "number"},
                "used_percent": {"type": "number"}
            }
        },
        "models.CPUStats": {
            "type": "object",
            "properties": {
                "num_cpu": {"type": "integer"},
                "used_percent": {"type": "number"},
                "idle_percent": {"type": "number"}
            }
        },
        "models.RegistryStats": {
            "type": "object",
            "properties": {
                "total_hosts": {"type": "integer"},
                "online_hosts": {"type": "integer"},
                "offline_hosts": {"type": "integer"},
                "dns_pending": {"type": "integer"},
                "dns_synced": {"type": "integer"},
                "dns_failed": {"type": "integer"}
            }
        },
        "models.ServerStatsResponse": {
            "type": "object",
            "properties": {
                "uptime": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "start_time": {"type": "string"},
                "goroutines": {"type": "integer"},
                "cpu": {"$ref": "#/definitions/models.CPUStats"},
                "memory": {"$ref": "#/definitions/models.MemoryStats"},
                "registry": {"$ref": "#/definitions/models.RegistryStats"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "X-API-Key"
        }
    }
}`

// SwaggerInfo holds exported swagger metadata consumed by gin-swagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Prism Admin API",
	Description:      "Operational endpoints for the Prism DNS registration engine: health, readiness, and aggregate stats.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
