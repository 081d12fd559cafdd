// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

// FS holds the SQL migrations (migrations/), the email templates (templates/email/)
// and the password policy assets (assets/).
//
//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
