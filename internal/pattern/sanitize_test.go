package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeComponentReplacesForbiddenChars(t *testing.T) {
	got := sanitizeComponent(`a:b/c\d*e?f"g<h>i|j`, "_", "Unknown")
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j", got)
}

func TestSanitizeComponentDropsControlChars(t *testing.T) {
	got := sanitizeComponent("abc\x00\x01def", "_", "Unknown")
	assert.Equal(t, "abcdef", got)
}

func TestSanitizeComponentTrimsTrailingDotsAndSpaces(t *testing.T) {
	assert.Equal(t, "file", sanitizeComponent("file. . ", "_", "Unknown"))
}

func TestSanitizeComponentFallsBackWhenEmpty(t *testing.T) {
	assert.Equal(t, "Unknown", sanitizeComponent("", "_", "Unknown"))
	assert.Equal(t, "Unknown", sanitizeComponent("   ", "_", "Unknown"))
}

func TestSanitizeComponentEscapesReservedDeviceNames(t *testing.T) {
	assert.Equal(t, "CON_", sanitizeComponent("CON", "_", "Unknown"))
	assert.Equal(t, "con_", sanitizeComponent("con", "_", "Unknown"))
	assert.Equal(t, "COM1_", sanitizeComponent("COM1", "_", "Unknown"))
	assert.Equal(t, "NUL.txt_", sanitizeComponent("NUL.txt", "_", "Unknown"))
	assert.Equal(t, "CONTRACT", sanitizeComponent("CONTRACT", "_", "Unknown"), "not a reserved name by itself")
}

func TestSanitizePathValuePreservesDirectorySeparators(t *testing.T) {
	got := sanitizePathValue("directory", "2026/Trip:to/Paris", "_", "Unknown")
	assert.Equal(t, "2026/Trip_to/Paris", got)
}

func TestSanitizePathValueTreatsOtherTokensAsSingleComponent(t *testing.T) {
	got := sanitizePathValue("name", "a/b", "_", "Unknown")
	assert.Equal(t, "a_b", got)
}

func TestSanitizePathValuePreservesTraversalForPathSafetyToCatch(t *testing.T) {
	got := sanitizePathValue("directory", "../../etc", "_", "Unknown")
	assert.Equal(t, "../../etc", got, "sanitize must not silently neutralize a traversal attempt")
}
