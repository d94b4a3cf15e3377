package cache

import "strings"

// GenerateKey joins key parts with ":".
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}
