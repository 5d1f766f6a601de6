// Package docs holds the swag API description served under -tags=swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/search": {
            "get": {
                "produces": ["application/json"],
                "summary": "Current run snapshot with the resolved summary",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RunView"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Start a search, cancelling the one in flight",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SearchRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.SearchStarted"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Engine not ready", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "summary": "Cancel the run in flight",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/search/stream": {
            "get": {
                "produces": ["application/x-ndjson"],
                "summary": "Stream run snapshots until the run settles",
                "responses": {
                    "200": {"description": "NDJSON of types.RunView"},
                    "429": {"description": "Too many streams", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/search/query": {
            "put": {
                "consumes": ["application/json"],
                "summary": "Record the query being typed for throttled autocomplete",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SearchRequest"}}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/autocomplete": {
            "get": {
                "produces": ["application/json"],
                "summary": "Query suggestions",
                "parameters": [{"type": "string", "in": "query", "name": "q"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AutocompleteResponse"}}}
            }
        },
        "/models": {
            "get": {
                "produces": ["application/json"],
                "summary": "Registered models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/models/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Inference engine status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EngineStatus"}}}
            }
        },
        "/models/status/stream": {
            "get": {
                "produces": ["application/x-ndjson"],
                "summary": "Stream engine status until the current load settles",
                "responses": {
                    "200": {"description": "NDJSON of types.EngineStatus"},
                    "429": {"description": "Too many streams", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/switch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Switch the active model by id or size class",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.SearchRequest": {"type": "object", "properties": {"query": {"type": "string"}}},
        "types.SearchStarted": {"type": "object", "properties": {"id": {"type": "string"}, "query": {"type": "string"}}},
        "types.Source": {"type": "object", "properties": {
            "url": {"type": "string"}, "title": {"type": "string"}, "icon": {"type": "string"},
            "origin": {"type": "string"}, "display_index": {"type": "integer"}
        }},
        "types.RunView": {"type": "object", "properties": {
            "id": {"type": "string"}, "query": {"type": "string"}, "status": {"type": "string"},
            "fetching": {"type": "boolean"}, "in_progress": {"type": "boolean"}, "error": {"type": "string"},
            "candidate_urls": {"type": "array", "items": {"type": "string"}},
            "pages": {"type": "array", "items": {"type": "string"}},
            "summary": {"type": "string"},
            "sources": {"type": "array", "items": {"$ref": "#/definitions/types.Source"}}
        }},
        "types.AutocompleteResponse": {"type": "object", "properties": {
            "query": {"type": "string"}, "suggestions": {"type": "array", "items": {"type": "string"}}
        }},
        "types.ModelSpec": {"type": "object", "properties": {
            "id": {"type": "string"}, "size_class": {"type": "string"}, "name": {"type": "string"}, "path": {"type": "string"}
        }},
        "types.ModelsResponse": {"type": "object", "properties": {
            "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelSpec"}}, "active": {"type": "string"}
        }},
        "types.EngineStatus": {"type": "object", "properties": {
            "state": {"type": "string"}, "loading": {"type": "boolean"}, "step_name": {"type": "string"},
            "progress_numerator": {"type": "integer"}, "progress_denominator": {"type": "integer"},
            "progress_text": {"type": "string"}, "active_model": {"type": "string"},
            "desired_model": {"type": "string"}, "error": {"type": "string"}
        }},
        "types.SwitchRequest": {"type": "object", "properties": {"id": {"type": "string"}, "size": {"type": "string"}}},
        "types.SwitchResponse": {"type": "object", "properties": {"op": {"type": "string"}, "model_id": {"type": "string"}}},
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "libreplexity API",
	Description:      "Search, read and summarize the web with a local model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
