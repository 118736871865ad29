// Package web embeds the page templates and static assets served by the
// cash box UI.
package web

import "embed"

// TemplatesFS holds layout.html and one template per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css).
//
//go:embed static/*
var StaticFS embed.FS
