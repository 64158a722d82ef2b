package archer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sw33tLie/archerlookup/pkg/entity"
)

// Options is the per-invocation configuration snapshot supplied by the host.
type Options struct {
	Host       string `json:"host" mapstructure:"host"`
	UserName   string `json:"userName" mapstructure:"userName"`
	UserPass   string `json:"userPass" mapstructure:"userPass"`
	InstanceID string `json:"instanceId" mapstructure:"instanceId"`
	UserDomain string `json:"userDomain" mapstructure:"userDomain"`

	LookupIPv6    bool `json:"lookupIPv6" mapstructure:"lookupIPv6"`
	LookupDomains bool `json:"lookupDomains" mapstructure:"lookupDomains"`
	LookupFnds    bool `json:"lookupFnds" mapstructure:"lookupFnds"`
	LookupDids    bool `json:"lookupDids" mapstructure:"lookupDids"`
	LookupApps    bool `json:"lookupApps" mapstructure:"lookupApps"`
	LookupIncs    bool `json:"lookupIncs" mapstructure:"lookupIncs"`
	LookupRsks    bool `json:"lookupRsks" mapstructure:"lookupRsks"`

	Blocklist            string `json:"blocklist" mapstructure:"blocklist"`
	DomainBlocklistRegex string `json:"domainBlocklistRegex" mapstructure:"domainBlocklistRegex"`
	IPBlocklistRegex     string `json:"ipBlocklistRegex" mapstructure:"ipBlocklistRegex"`

	// DirectSearch is accepted for compatibility; searches are always exact keyword matches.
	DirectSearch bool `json:"directSearch" mapstructure:"directSearch"`
}

// DefaultOptions mirrors the defaults an administrator sees for a fresh install.
func DefaultOptions() Options {
	return Options{
		Host:          "https://grc.archer.rsa.com",
		LookupDomains: true,
		LookupFnds:    true,
		LookupDids:    true,
		LookupApps:    true,
		LookupIncs:    true,
		LookupRsks:    true,
	}
}

// OptionError reports a single invalid option.
type OptionError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ValidateOptions checks the options that are required to reach Archer at all.
func ValidateOptions(o Options) []OptionError {
	errs := []OptionError{}
	if o.Host == "" {
		errs = append(errs, OptionError{Key: "host", Message: "You must provide an Authentication Host option."})
	}
	if o.UserName == "" {
		errs = append(errs, OptionError{Key: "userName", Message: "You must provide an Archer API username."})
	}
	if o.UserPass == "" {
		errs = append(errs, OptionError{Key: "userPass", Message: "You must provide a password."})
	}
	return errs
}

func (o Options) baseURL() string {
	return strings.TrimRight(o.Host, "/")
}

// sessionKey identifies a credential tuple. The concatenation order is fixed;
// the digest keeps the password out of cache keys.
func (o Options) sessionKey() string {
	sum := sha256.Sum256([]byte(o.Host + o.UserName + o.InstanceID + o.UserPass + o.UserDomain))
	return "session:" + hex.EncodeToString(sum[:])
}

// lookupEnabled applies the per-category switches. Entities of types without
// a switch (IPv4) are always enabled.
func (o Options) lookupEnabled(e entity.Entity) bool {
	switch {
	case e.Is(entity.TypeDomain) && !o.LookupDomains:
		return false
	case e.Is(entity.TypeIPv6) && !o.LookupIPv6:
		return false
	case e.Is(entity.KindApplication) && !o.LookupApps:
		return false
	case e.Is(entity.KindDevice) && !o.LookupDids:
		return false
	case e.Is(entity.KindRisk) && !o.LookupRsks:
		return false
	case e.Is(entity.KindFinding) && !o.LookupFnds:
		return false
	case e.Is(entity.KindIncident) && !o.LookupIncs:
		return false
	}
	return true
}
