package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Engine API",
        "description": "Generates, checks, repairs and optimizes university timetables",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetables", "description": "Proposal lifecycle: generate, detect, resolve, optimize, save"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "security": [],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check",
                "security": [],
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated service metrics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a timetable proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or catalog", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/detect": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Detect conflicts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleSource"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/resolve": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Resolve conflicts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveConflictsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/optimize": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Optimize a schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OptimizeTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "499": {"description": "Client cancelled the run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/optimize/async": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Queue an optimization",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OptimizeTimetableRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/jobs/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Optimization job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired job"}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List saved timetables",
                "parameters": [
                    {"name": "semester", "in": "query", "type": "integer"},
                    {"name": "programId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "PUBLISHED", "ARCHIVED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/save": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Save a proposal as a new timetable version",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "High-severity conflicts remain", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a draft timetable",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Timetable is not a draft"}
                }
            }
        },
        "/timetables/{id}/sessions": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a saved timetable with its sessions",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/timetables/{id}/status": {
            "patch": {
                "tags": ["Timetables"],
                "summary": "Publish or archive a saved timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTimetableStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Export a saved timetable",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "Scope": {
            "type": "object",
            "properties": {
                "semester": {"type": "integer"},
                "programId": {"type": "string"},
                "classId": {"type": "string"},
                "groupId": {"type": "string"}
            }
        },
        "Session": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "unitId": {"type": "string"},
                "lecturerId": {"type": "string"},
                "groupId": {"type": "string"},
                "subgroup": {"type": "string"},
                "attendance": {"type": "integer"},
                "day": {"type": "integer", "minimum": 1, "maximum": 7},
                "start": {"type": "string", "example": "08:00"},
                "end": {"type": "string", "example": "10:00"},
                "slotId": {"type": "string"},
                "venueId": {"type": "string"},
                "mode": {"type": "string", "enum": ["Physical", "Online"]},
                "block": {"type": "integer"}
            }
        },
        "Snapshot": {
            "type": "object",
            "properties": {
                "units": {"type": "array", "items": {"type": "object"}},
                "lecturers": {"type": "array", "items": {"type": "object"}},
                "groups": {"type": "array", "items": {"type": "object"}},
                "venues": {"type": "array", "items": {"type": "object"}},
                "slots": {"type": "array", "items": {"type": "object"}}
            }
        },
        "OptimizeOptions": {
            "type": "object",
            "properties": {
                "algorithm": {"type": "string", "enum": ["backtracking", "simulated_annealing", "genetic"]},
                "seed": {"type": "integer"},
                "iterations": {"type": "integer"},
                "timeBudgetMs": {"type": "integer"},
                "weights": {"type": "object"},
                "annealing": {"type": "object"},
                "genetic": {"type": "object"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "scope": {"$ref": "#/definitions/Scope"},
                "snapshot": {"$ref": "#/definitions/Snapshot"},
                "assignments": {"type": "object", "additionalProperties": {"type": "string"}},
                "optimize": {"$ref": "#/definitions/OptimizeOptions"}
            }
        },
        "ScheduleSource": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string", "format": "uuid"},
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/Session"}},
                "snapshot": {"$ref": "#/definitions/Snapshot"},
                "scope": {"$ref": "#/definitions/Scope"}
            }
        },
        "ResolveConflictsRequest": {
            "allOf": [
                {"$ref": "#/definitions/ScheduleSource"},
                {
                    "type": "object",
                    "properties": {
                        "strategy": {"type": "string", "enum": ["reschedule", "split_groups", "auto"]},
                        "conflicts": {"type": "array", "items": {"type": "object"}}
                    }
                }
            ]
        },
        "OptimizeTimetableRequest": {
            "allOf": [
                {"$ref": "#/definitions/ScheduleSource"},
                {
                    "type": "object",
                    "properties": {
                        "options": {"$ref": "#/definitions/OptimizeOptions"},
                        "compare": {"type": "boolean"}
                    }
                }
            ]
        },
        "SaveTimetableRequest": {
            "type": "object",
            "required": ["proposalId"],
            "properties": {
                "proposalId": {"type": "string", "format": "uuid"},
                "publish": {"type": "boolean"},
                "note": {"type": "string"}
            }
        },
        "UpdateTimetableStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["PUBLISHED", "ARCHIVED"]}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
