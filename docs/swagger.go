package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/jackzampolin/tome"
        },
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
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check including the default provider",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}}
                }
            }
        },
        "/api/jobs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.Listing"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job progress",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Delete every record of a job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.ClearJobResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{id}/start": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Start or resume a job and run it to the end",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true},
                    {"description": "Input text, required for a new job", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/endpoints.StartJobRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.Summary"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{id}/logs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Read a job's log for one day",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Day as YYYY-MM-DD (default today)", "name": "date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.JobLogsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{id}/calls": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "List recorded generation attempts of a job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum number of calls", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.JobCallsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/api/jobs/{id}/output": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Read the parsed output entries of a job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.JobOutputResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "endpoints.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "endpoints.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "provider": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "endpoints.StartJobRequest": {
            "type": "object",
            "properties": {"text": {"type": "string"}}
        },
        "endpoints.ClearJobResponse": {
            "type": "object",
            "properties": {"job_id": {"type": "string"}, "cleared": {"type": "boolean"}}
        },
        "endpoints.JobLogsResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "date": {"type": "string"},
                "entries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "endpoints.JobCallsResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "calls": {"type": "array", "items": {"type": "object"}}
            }
        },
        "endpoints.JobOutputResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "entries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "job.Listing": {
            "type": "object",
            "properties": {
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/job.View"}},
                "total": {"type": "integer"},
                "completed": {"type": "integer"},
                "in_progress": {"type": "integer"}
            }
        },
        "job.View": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "status": {"type": "string", "enum": ["completed", "in_progress"]},
                "running": {"type": "boolean"},
                "total_units": {"type": "integer"},
                "completed": {"type": "integer"},
                "failed": {"type": "array", "items": {"type": "integer"}},
                "quality_flagged": {"type": "integer"},
                "remaining": {"type": "integer"},
                "percentage": {"type": "number"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "output_path": {"type": "string"},
                "output_size": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "job.Summary": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "run_id": {"type": "string"},
                "mode": {"type": "string", "enum": ["new", "resume"]},
                "status": {"type": "string", "enum": ["completed", "in_progress"]},
                "total_units": {"type": "integer"},
                "completed": {"type": "integer"},
                "failed": {"type": "integer"},
                "quality_flagged": {"type": "integer"},
                "newly_processed": {"type": "integer"},
                "remaining": {"type": "integer"},
                "percentage": {"type": "number"},
                "cancelled": {"type": "boolean"},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "output_path": {"type": "string"},
                "output_size": {"type": "integer"},
                "backups": {"type": "array", "items": {"type": "string"}},
                "units": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "tome API",
	Description:      "Resumable chunked document generation: start, resume, inspect and clear jobs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
