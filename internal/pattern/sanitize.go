package pattern

import "strings"

const forbiddenChars = `<>:"/\|?*`

// sanitizeComponent cleans a single path component: forbidden characters
// are replaced, control characters are dropped, trailing dots and spaces
// are trimmed, and an empty result becomes unknownFallback. A result that
// collides with a Windows reserved device name gets a trailing underscore
// so it never refers to a device instead of a file.
func sanitizeComponent(s, replacement, unknownFallback string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20:
			continue
		case strings.ContainsRune(forbiddenChars, r):
			b.WriteString(replacement)
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimRight(b.String(), " .")
	if out == "" {
		out = unknownFallback
	}
	if isReservedDeviceName(out) {
		out += "_"
	}
	return out
}

// sanitizePathValue sanitizes a token's substituted value. The
// "directory" token may legitimately contain "/" as a subdirectory
// separator, so its components are sanitized individually and rejoined,
// except that a ".." component is kept as is for
// pathsafety.ValidateGenerated to reject; every other token is sanitized
// as a single component.
func sanitizePathValue(token, value, replacement, unknownFallback string) string {
	if token != "directory" {
		return sanitizeComponent(value, replacement, unknownFallback)
	}
	parts := strings.Split(value, "/")
	for i, p := range parts {
		if p == ".." {
			continue
		}
		parts[i] = sanitizeComponent(p, replacement, unknownFallback)
	}
	return strings.Join(parts, "/")
}

var reservedDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
}

func isReservedDeviceName(s string) bool {
	base := s
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		base = s[:idx]
	}
	upper := strings.ToUpper(base)
	if reservedDeviceNames[upper] {
		return true
	}
	if len(upper) == 4 && (strings.HasPrefix(upper, "COM") || strings.HasPrefix(upper, "LPT")) {
		if upper[3] >= '1' && upper[3] <= '9' {
			return true
		}
	}
	return false
}
