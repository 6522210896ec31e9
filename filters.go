// Package tokf embeds the standard filter library.
package tokf

import "embed"

// EmbeddedFilters holds the filter documents and their test cases.
//
//go:embed filters
var EmbeddedFilters embed.FS
