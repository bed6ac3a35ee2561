package storage

import _ "embed"

//go:embed placeholder.svg
var placeholder []byte

// Placeholder is served when a scan image cannot be found.
func Placeholder() ([]byte, string) {
	return placeholder, "image/svg+xml"
}
