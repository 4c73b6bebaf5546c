// Package docs registers the StackMotive OpenAPI document with swag.
// Regenerate the paths with `swag init -g cmd/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "url": "https://www.stackmotive.com/support",
            "email": "support@stackmotive.com"
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
        "/rings": {
            "get": {
                "tags": ["rings"],
                "summary": "List the caller's rings",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["rings"],
                "summary": "Create an allocation ring",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/rings/default": {
            "post": {
                "tags": ["rings"],
                "summary": "Create a ring from a linked portfolio",
                "responses": {"201": {"description": "Created"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/rings/filter": {
            "post": {
                "tags": ["rings"],
                "summary": "Filter the caller's rings",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}": {
            "get": {
                "tags": ["rings"],
                "summary": "Get a ring",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "patch": {
                "tags": ["rings"],
                "summary": "Update a ring",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "tags": ["rings"],
                "summary": "Delete a ring",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/rings/{id}/asset-classes": {
            "post": {
                "tags": ["asset-classes"],
                "summary": "Add an asset class",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/rings/{id}/asset-classes/{assetClassId}": {
            "patch": {
                "tags": ["asset-classes"],
                "summary": "Update an asset class",
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["asset-classes"],
                "summary": "Remove an asset class",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}/targets": {
            "post": {
                "tags": ["targets"],
                "summary": "Add a target allocation",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/rings/{id}/targets/{targetId}/activate": {
            "post": {
                "tags": ["targets"],
                "summary": "Activate a target allocation",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}/targets/{targetId}": {
            "delete": {
                "tags": ["targets"],
                "summary": "Remove a target allocation",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}/analyze": {
            "post": {
                "tags": ["rebalancing"],
                "summary": "Analyse rebalancing options",
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/rings/{id}/performance": {
            "get": {
                "tags": ["rebalancing"],
                "summary": "Performance analysis",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}/refresh": {
            "post": {
                "tags": ["rebalancing"],
                "summary": "Refresh valuations from the portfolio provider",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rings/{id}/suggestions/{suggestionId}/accept": {
            "post": {
                "tags": ["rebalancing"],
                "summary": "Accept a suggestion",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/rings/{id}/suggestions/{suggestionId}/reject": {
            "post": {
                "tags": ["rebalancing"],
                "summary": "Reject a suggestion",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/rings/{id}/suggestions/{suggestionId}/execute": {
            "post": {
                "tags": ["rebalancing"],
                "summary": "Execute an accepted suggestion",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/notifications/preferences": {
            "get": {
                "tags": ["notifications"],
                "summary": "Get notification preferences",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["notifications"],
                "summary": "Update notification preferences",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    },
    "securityDefinitions": {
        "UserID": {
            "type": "apiKey",
            "name": "X-User-ID",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "StackMotive Allocation API",
	Description:      "Tax-aware portfolio allocation rings for Australian and New Zealand investors.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
