package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// DocumentPath is where the router serves the embedded OpenAPI document.
const DocumentPath = "/openapi.yml"

// Handler serves Swagger UI pointed at the document under DocumentPath.
func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(DocumentPath),
		httpSwagger.DocExpansion("list"),
	)
}
