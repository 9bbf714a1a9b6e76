package swagger

import _ "embed"

// Document is the OpenAPI 3 description of the tally HTTP API.
//
//go:embed openapi.yaml
var Document []byte
