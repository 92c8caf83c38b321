// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/polls": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["poll-service"],
                "summary": "Create a poll",
                "parameters": [
                    {
                        "description": "poll definition",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.CreatePollRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.PollResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["poll-service"],
                "summary": "Get a poll",
                "parameters": [
                    {"type": "string", "description": "poll id", "name": "poll_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.PollResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["poll-service"],
                "summary": "Toggle a vote",
                "parameters": [
                    {"type": "string", "description": "poll id", "name": "poll_id", "in": "path", "required": true},
                    {
                        "description": "vote",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.CastVoteRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CastVoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.CastVoteRequest": {
            "type": "object",
            "required": ["option_index", "voter_id"],
            "properties": {
                "option_index": {"type": "integer"},
                "voter_id": {"type": "string"}
            }
        },
        "http.CastVoteResponse": {
            "type": "object",
            "properties": {
                "attempts": {"type": "integer"},
                "poll": {"$ref": "#/definitions/http.PollResponse"},
                "removed": {"type": "boolean"}
            }
        },
        "http.CreatePollRequest": {
            "type": "object",
            "properties": {
                "channel_id": {"type": "string"},
                "creator_id": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "title": {"type": "string"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.OptionResponse": {
            "type": "object",
            "properties": {
                "action_value": {"type": "string"},
                "index": {"type": "integer"},
                "title": {"type": "string"},
                "vote_count": {"type": "integer"},
                "voters": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.PollResponse": {
            "type": "object",
            "properties": {
                "options": {"type": "array", "items": {"$ref": "#/definitions/http.OptionResponse"}},
                "poll_id": {"type": "string"},
                "title": {"type": "string"},
                "version": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pollbot API",
	Description:      "Chat polls with optimistic-concurrency voting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
