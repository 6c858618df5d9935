package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "License Exception API",
        "description": "Approval workflow for driver's license exception requests",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Requests", "description": "Exception request submission and tracking"},
        {"name": "Approvals", "description": "Approver decision workflow"},
        {"name": "Programs", "description": "Study program and approver administration"},
        {"name": "Audit", "description": "Append-only audit trail"}
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List own requests",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit exception request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing confirmations"},
                    "404": {"description": "Unknown study program"}
                }
            }
        },
        "/approvals/pending": {
            "get": {
                "tags": ["Approvals"],
                "summary": "List pending requests for the approver's programs",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an approver"}
                }
            }
        },
        "/approvals/{requestId}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Approve or reject a pending request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "requestId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideRequest"}}
                ],
                "responses": {
                    "201": {"description": "Decision recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "204": {"description": "Decision already recorded by another approver"},
                    "403": {"description": "Not an approver"},
                    "409": {"description": "Request no longer pending"}
                }
            },
            "delete": {
                "tags": ["Approvals"],
                "summary": "Retract a decision (not supported)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "requestId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "501": {"description": "Not implemented"}
                }
            }
        },
        "/programs": {
            "get": {
                "tags": ["Programs"],
                "summary": "List study programs",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Programs"],
                "summary": "Create study program",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProgramRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/programs/{id}": {
            "get": {
                "tags": ["Programs"],
                "summary": "Get program with approver roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/programs/{id}/approvers": {
            "post": {
                "tags": ["Programs"],
                "summary": "Assign approver to program",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignApproverRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already assigned"}
                }
            }
        },
        "/programs/approvers/{approverId}": {
            "delete": {
                "tags": ["Programs"],
                "summary": "Remove approver",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "approverId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Programs"],
                "summary": "Activate or deactivate approver",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "approverId", "in": "path", "required": true, "type": "string"},
                    {"name": "active", "in": "query", "required": true, "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "Browse audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "email", "in": "query", "type": "string"},
                    {"name": "request_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audit/export": {
            "get": {
                "tags": ["Audit"],
                "summary": "Export audit trail as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unknown format"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateRequestRequest": {
            "type": "object",
            "properties": {
                "study_program_id": {"type": "string"},
                "has_valid_license": {"type": "boolean"},
                "read_guidelines": {"type": "boolean"}
            },
            "required": ["study_program_id", "has_valid_license", "read_guidelines"]
        },
        "DecideRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "comment": {"type": "string"}
            },
            "required": ["decision"]
        },
        "CreateProgramRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "expiry_days": {"type": "integer"},
                "reminder_days": {"type": "integer"}
            },
            "required": ["name"]
        },
        "AssignApproverRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email"]
        },
        "Request": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "study_program_id": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED", "EXPIRED"]},
                "has_valid_license": {"type": "boolean"},
                "read_guidelines": {"type": "boolean"},
                "expires_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Approval": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "request_id": {"type": "string"},
                "approver_user_id": {"type": "string"},
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "comment": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "AuditLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "user_email": {"type": "string"},
                "role": {"type": "string"},
                "action": {"type": "string"},
                "request_id": {"type": "string"},
                "study_program_id": {"type": "string"},
                "details": {"type": "string"},
                "created_at": {"type": "string"}
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
