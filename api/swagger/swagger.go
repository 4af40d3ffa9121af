package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StudyHall Planner API",
        "description": "Study session planning with free/busy conflict detection",
        "version": "0.1.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Planner", "description": "Plan generation and persisted plans"},
        {"name": "Calendar", "description": "Busy-window calendar events"},
        {"name": "Exports", "description": "Asynchronous plan exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Dependencies unavailable"}
                }
            }
        },
        "/planner/plan": {
            "post": {
                "tags": ["Planner"],
                "summary": "Generate and persist a study plan",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/PlanRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Plan created", "schema": {"$ref": "#/definitions/PlanResponse"}},
                    "400": {"description": "Invalid constraints", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicts with busy windows or committed sessions", "schema": {"$ref": "#/definitions/ConflictResponse"}},
                    "500": {"description": "Persist failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/planner/plans": {
            "get": {
                "tags": ["Planner"],
                "summary": "List the caller's plans",
                "parameters": [
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/planner/plans/{id}": {
            "get": {
                "tags": ["Planner"],
                "summary": "Fetch a plan with its sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Planner"],
                "summary": "Delete a plan and its sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/planner/plans/{id}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export of a plan's sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ExportRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Export queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Report export job progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Stream a finished export using a signed token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/calendar/events": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List the caller's calendar events",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a calendar event",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/events/{id}": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Fetch a calendar event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Calendar"],
                "summary": "Update a calendar event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Calendar"],
                "summary": "Delete a calendar event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        }
    },
    "definitions": {
        "PlanRequest": {
            "type": "object",
            "required": ["courseId", "fromDate", "toDate", "sessionMinutes", "dailyCap"],
            "properties": {
                "courseId": {"type": "string"},
                "fromDate": {"type": "string", "example": "2026-09-01"},
                "toDate": {"type": "string", "example": "2026-09-14"},
                "sessionMinutes": {"type": "integer"},
                "dailyCap": {"type": "integer"},
                "preferredStartHour": {"type": "integer"},
                "preferredEndHour": {"type": "integer"},
                "topics": {"type": "array", "items": {"type": "string"}},
                "description": {"type": "string"},
                "location": {"type": "string"},
                "timezone": {"type": "string", "example": "America/New_York"}
            }
        },
        "PlanResponse": {
            "type": "object",
            "properties": {
                "planId": {"type": "string"},
                "sessions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/PlanSession"}
                }
            }
        },
        "PlanSession": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "courseId": {"type": "string"},
                "startAt": {"type": "string"},
                "endAt": {"type": "string"},
                "topic": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "ConflictResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "conflicts"},
                "count": {"type": "integer"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf", "ics"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
