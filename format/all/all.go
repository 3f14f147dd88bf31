// Package all registers all built-in formats.
package all

import (
	_ "github.com/wader/bitlayout/format/dot1q"
	_ "github.com/wader/bitlayout/format/ipv4"
)
