package analysis

import (
	"path"
	"strings"
)

// ImageFilename strips any directory prefix from a stored image path so the
// object can be addressed by file name alone. Both separators are handled since
// ingestion has stored Windows paths. A path naming a directory (trailing
// separator) has no file name and yields "".
func ImageFilename(imagePath string) string {
	p := strings.TrimSpace(strings.ReplaceAll(imagePath, "\\", "/"))
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
