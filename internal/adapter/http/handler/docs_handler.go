package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Age Verification Gateway API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/swagger/spec', dom_id: '#docs', deepLinking: true });
  </script>
</body>
</html>`

// DocsHandler serves the OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	spec []byte
	etag string
}

func NewDocsHandler(spec []byte) *DocsHandler {
	h := &DocsHandler{spec: spec}
	if len(spec) > 0 {
		sum := sha256.Sum256(spec)
		h.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	}
	return h
}

// Spec returns the YAML document and honours If-None-Match.
func (h *DocsHandler) Spec(c *gin.Context) {
	if len(h.spec) == 0 {
		c.String(http.StatusNotFound, "no OpenAPI document configured")
		return
	}
	c.Header("ETag", h.etag)
	c.Header("Cache-Control", "public, max-age=300")
	if c.GetHeader("If-None-Match") == h.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.spec)
}

func (h *DocsHandler) UI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}
