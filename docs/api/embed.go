// Package api carries the OpenAPI document compiled into the server binary.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
