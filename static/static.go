// Package static embeds the demo frontend served at the site root. The page
// is self-contained and fabricates its display data client-side.
package static

import "embed"

//go:embed index.html
var FS embed.FS
