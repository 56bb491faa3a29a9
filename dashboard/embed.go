// Package dashboard embeds the operator dashboard: a single static
// page that polls /status and subscribes to the /events stream. It is
// compiled into the binary so a lobby deployment stays one file.
package dashboard

import "embed"

// StaticFS holds the embedded dashboard assets, served under
// /dashboard.
//
//go:embed static
var StaticFS embed.FS
