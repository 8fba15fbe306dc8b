// Package web embeds the static dashboard page.
package web

import _ "embed"

//go:embed index.html
var Index []byte
