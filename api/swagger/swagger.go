package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CivicDesk Grievance API",
        "description": "Citizen grievance tracking with SLA-driven escalation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh, logout"},
        {"name": "Grievances", "description": "Filing and workflow transitions"},
        {"name": "Directory", "description": "Categories and departments"},
        {"name": "Admin", "description": "Dashboard and escalation sweep"},
        {"name": "Reports", "description": "Asynchronous register exports"},
        {"name": "Classifier", "description": "Category suggestions"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {"200": {"description": "Tokens issued"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {"200": {"description": "Tokens issued"}}
            }
        },
        "/grievances": {
            "get": {
                "tags": ["Grievances"],
                "summary": "List grievances visible to the caller",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Grievances"],
                "summary": "File a grievance",
                "responses": {"201": {"description": "Created"}, "422": {"description": "Unresolved department"}}
            }
        },
        "/grievances/{id}": {
            "get": {
                "tags": ["Grievances"],
                "summary": "Grievance detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/grievances/{id}/events": {
            "get": {
                "tags": ["Grievances"],
                "summary": "Audit timeline",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/grievances/{id}/transition": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Move to a new status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Concurrent modification"}}
            }
        },
        "/grievances/{id}/reassign": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Reassign category",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unresolved department"}}
            }
        },
        "/grievances/{id}/reopen": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Reopen a closed grievance",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not reopenable"}}
            }
        },
        "/grievances/{id}/extension": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Grant an SLA extension",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not eligible"}}
            }
        },
        "/grievances/{id}/resolution": {
            "patch": {
                "tags": ["Grievances"],
                "summary": "Record resolution artifacts",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/categories": {
            "get": {
                "tags": ["Directory"],
                "summary": "Selectable leaf categories",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/departments": {
            "get": {
                "tags": ["Directory"],
                "summary": "Departments",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/classifier/suggest": {
            "post": {
                "tags": ["Classifier"],
                "summary": "Suggest categories for a description",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/stats": {
            "get": {
                "tags": ["Admin"],
                "summary": "Aggregated counters",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run an escalation sweep now",
                "responses": {"200": {"description": "Sweep summary"}, "409": {"description": "Sweep already running"}}
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Start a register export",
                "responses": {"202": {"description": "Job queued"}}
            }
        },
        "/reports/status/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Poll a report job",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File"}, "403": {"description": "Invalid token"}}
            }
        }
    },
    "definitions": {
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
                "pagination": {"type": "object"},
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
