// Package embedded provides static data files compiled into the binary.
package embedded

import (
	"embed"
)

// Files contains the default parameter tables:
// - parameters/*.yaml - central values and ranges, one file per group
//
//go:embed parameters
var Files embed.FS
