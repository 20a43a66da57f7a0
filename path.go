package cim

import (
	"path/filepath"
	"strings"
)

// ImageSeparator is the path separator used inside composite images.
const ImageSeparator = `\`

// splitComponents breaks a raw source path into its normal components and the
// stripped non-normal prefix. Drive or UNC prefixes, root separators and the
// "." / ".." components all collapse into the implicit image root: only the
// normal components survive into the relative path. The stripped prefix is
// kept so ancestor source paths can be rebuilt against the real filesystem.
func splitComponents(path string) (prefix string, normal []string) {
	vol := filepath.VolumeName(path)
	rest := path[len(vol):]

	prefix = vol
	if strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, `\`) {
		prefix += string(filepath.Separator)
	}

	for _, c := range strings.FieldsFunc(rest, isPathSeparator) {
		switch c {
		case ".", "..":
			// Leading dot components fold into the prefix so ancestor
			// source paths stay addressable. Later ones resolve to the
			// image root like any other non-normal component.
			if len(normal) == 0 {
				prefix = filepath.Join(prefix, c)
			}
		default:
			normal = append(normal, c)
		}
	}
	return prefix, normal
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// joinImagePath joins normal components with the image separator convention.
func joinImagePath(components []string) string {
	return strings.Join(components, ImageSeparator)
}

// imagePathComponents splits an already-resolved relative path back into its
// components. Resolved paths never contain empty or non-normal components.
func imagePathComponents(rel string) []string {
	return strings.Split(rel, ImageSeparator)
}
