// Package web provides the embedded lesson viewer page and its static assets.
package web

import "embed"

// TemplatesFS contains the page templates
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS contains the viewer scripts and styles
//
//go:embed static
var StaticFS embed.FS
