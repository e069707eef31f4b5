package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps the supported document extensions to MIME types.
var mimeTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".json":     "application/json",
}

// MimeTypeForPath returns the MIME type for a document path, or
// "text/plain" for unknown extensions.
func MimeTypeForPath(path string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "text/plain"
}
