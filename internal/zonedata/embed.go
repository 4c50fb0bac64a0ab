// Package zonedata provides the embedded static zone datasets and utilities
// for loading them.
package zonedata

import "embed"

// dataFS embeds all zone JSON files from this directory at build time.
//
//go:embed *.json
var dataFS embed.FS
