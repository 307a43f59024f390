// Package assets bundles the static files shipped with the binaries.
package assets

import "embed"

// EmailTemplatesDir is the directory of EmailTemplates holding the email templates.
const EmailTemplatesDir = "templates/email"

//go:embed templates/email/*
var EmailTemplates embed.FS
