// Package appfs embeds assets needed at runtime by other packages.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
