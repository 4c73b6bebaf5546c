// Package docs provides Swagger API documentation
// This file contains the general Swagger annotations for the StackMotive API
package docs

// @title StackMotive Allocation API
// @version 1.0
// @description Tax-aware portfolio allocation rings for Australian and New Zealand investors. Rings track asset class drift, generate rebalancing suggestions and model their tax impact.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://www.stackmotive.com/support
// @contact.email support@stackmotive.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey UserID
// @in header
// @name X-User-ID
// @description UUID of the calling user, set by the upstream gateway.

// @tag.name rings
// @tag.description Allocation ring management

// @tag.name asset-classes
// @tag.description Asset classes within a ring

// @tag.name targets
// @tag.description Target allocations and their constraints

// @tag.name rebalancing
// @tag.description Rebalancing analysis, suggestions and execution

// @tag.name health
// @tag.description Health check and monitoring endpoints
