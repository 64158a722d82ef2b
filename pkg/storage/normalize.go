package storage

import (
	"strings"

	"github.com/sw33tLie/archerlookup/pkg/entity"
)

// NormalizeValue canonicalizes an entity value for storage and matching.
// Hostnames and addresses are case-insensitive; tracking IDs are kept as-is.
func NormalizeValue(value, typ string) string {
	value = strings.TrimSpace(value)
	switch typ {
	case entity.TypeDomain:
		return strings.TrimSuffix(strings.ToLower(value), ".")
	case entity.TypeIP, entity.TypeIPv6:
		return strings.ToLower(value)
	}
	return value
}
