// Package entity models the values a host extracts from text and hands to the
// Archer connector: IP addresses, domains and Archer tracking IDs.
package entity

import (
	"regexp"
	"strings"

	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/net/idna"
)

const (
	TypeIP     = "ip"
	TypeIPv6   = "IPv6"
	TypeDomain = "domain"
	TypeCustom = "custom"
)

// Archer tracking ID kinds.
const (
	KindApplication = "arch_apps"
	KindDevice      = "arch_devc"
	KindRisk        = "arch_risk"
	KindFinding     = "arch_find"
	KindIncident    = "arch_incd"
)

// Entity is a single lookup input. Identity is Value+Type.
type Entity struct {
	Value       string   `json:"value"`
	Type        string   `json:"type"`
	Types       []string `json:"types,omitempty"`
	IsIP        bool     `json:"isIP"`
	IsIPv4      bool     `json:"isIPv4"`
	IsIPv6      bool     `json:"isIPv6"`
	IsPrivateIP bool     `json:"isPrivateIP"`
	IsDomain    bool     `json:"isDomain"`
}

// Is reports whether the entity is of type t, either directly or as a
// member of its declared types (custom kinds appear as "custom.<kind>").
func (e Entity) Is(t string) bool {
	if e.Type == t {
		return true
	}
	for _, typ := range e.Types {
		if typ == t || typ == TypeCustom+"."+t {
			return true
		}
	}
	return false
}

type trackingPattern struct {
	kind string
	re   *regexp.Regexp
}

var trackingPatterns = []trackingPattern{
	{KindApplication, regexp.MustCompile(`^APPID-[0-9]{2,7}$`)},
	{KindDevice, regexp.MustCompile(`^DID-[0-9]{2,7}$`)},
	{KindRisk, regexp.MustCompile(`^RKS-[0-9]{2,7}$`)},
	{KindFinding, regexp.MustCompile(`^FND-[0-9]{2,7}$`)},
	{KindIncident, regexp.MustCompile(`^INC-[0-9]{2,7}$`)},
}

var hostnameRegex = regexp.MustCompile(`^(?i)([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z][a-z0-9-]{0,62}$`)

// Parse classifies a raw string. ok is false when the value is not something
// the connector knows how to look up.
func Parse(raw string) (e Entity, ok bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Entity{}, false
	}

	for _, p := range trackingPatterns {
		if p.re.MatchString(value) {
			return Entity{
				Value: value,
				Type:  TypeCustom,
				Types: []string{TypeCustom + "." + p.kind},
			}, true
		}
	}

	if addr, isIP := utils.ParseIP(value); isIP {
		e = Entity{
			Value:       strings.Trim(value, "[]"),
			IsIP:        true,
			IsPrivateIP: utils.IsPrivateIP(addr),
		}
		if addr.Is4() {
			e.Type = TypeIP
			e.IsIPv4 = true
		} else {
			e.Type = TypeIPv6
			e.IsIPv6 = true
		}
		e.Types = []string{e.Type}
		return e, true
	}

	if isDomain(value) {
		return Entity{
			Value:    value,
			Type:     TypeDomain,
			Types:    []string{TypeDomain},
			IsDomain: true,
		}, true
	}

	return Entity{}, false
}

// ParseAll classifies every raw value, returning the recognized entities and
// the values that were skipped.
func ParseAll(raw []string) (entities []Entity, skipped []string) {
	for _, r := range raw {
		if e, ok := Parse(r); ok {
			entities = append(entities, e)
		} else if strings.TrimSpace(r) != "" {
			skipped = append(skipped, r)
		}
	}
	return entities, skipped
}

// isDomain accepts registrable hostnames. Internationalized names are checked
// in their punycode form.
func isDomain(value string) bool {
	host, err := idna.Lookup.ToASCII(strings.TrimSuffix(value, "."))
	if err != nil {
		return false
	}
	if !strings.Contains(host, ".") || !hostnameRegex.MatchString(host) {
		return false
	}
	if _, err := publicsuffix.Domain(host); err != nil {
		return false
	}
	return true
}
