package archer

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/pkg/entity"
)

// Blocklist holds the compiled form of the blocklist options. It is only
// rebuilt when the raw option string changes, so callers that interleave
// different option sets will see whichever set was applied last.
type Blocklist struct {
	mu  sync.RWMutex
	log logrus.FieldLogger

	rawList        string
	rawDomainRegex string
	rawIPRegex     string

	list        []string
	domainRegex *regexp.Regexp
	ipRegex     *regexp.Regexp
}

func NewBlocklist(log logrus.FieldLogger) *Blocklist {
	return &Blocklist{log: log}
}

// Update applies the blocklist options.
func (b *Blocklist) Update(opts Options) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts.Blocklist != b.rawList {
		b.rawList = opts.Blocklist
		if opts.Blocklist == "" {
			b.log.Debug("Removing Domain Blocklist Filtering")
			b.list = nil
		} else {
			b.log.WithField("blocklist", opts.Blocklist).Debug("Modifying Domain Blocklist")
			b.list = splitList(opts.Blocklist)
		}
	}

	if opts.DomainBlocklistRegex != b.rawDomainRegex {
		b.rawDomainRegex = opts.DomainBlocklistRegex
		b.domainRegex = b.compile("Domain", opts.DomainBlocklistRegex)
	}

	if opts.IPBlocklistRegex != b.rawIPRegex {
		b.rawIPRegex = opts.IPBlocklistRegex
		b.ipRegex = b.compile("IP", opts.IPBlocklistRegex)
	}
}

func (b *Blocklist) compile(kind, raw string) *regexp.Regexp {
	if raw == "" {
		b.log.Debugf("Removing %s Blocklist Regex Filtering", kind)
		return nil
	}
	re, err := regexp.Compile("(?i)" + raw)
	if err != nil {
		b.log.WithError(err).WithField("regex", raw).Warnf("Invalid %s Blocklist Regex, filter disabled", kind)
		return nil
	}
	b.log.WithField("regex", raw).Debugf("Modifying %s Blocklist Regex", kind)
	return re
}

// IsBlocked reports whether e must not be looked up.
func (b *Blocklist) IsBlocked(e entity.Entity) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, item := range b.list {
		if item == e.Value {
			b.log.WithField("value", e.Value).Debug("Blocked blocklisted lookup")
			return true
		}
	}

	if e.IsIPv4 && !e.IsPrivateIP && b.ipRegex != nil && b.ipRegex.MatchString(e.Value) {
		b.log.WithField("ip", e.Value).Debug("Blocked blocklisted IP lookup")
		return true
	}

	if e.IsDomain && b.domainRegex != nil && b.domainRegex.MatchString(e.Value) {
		b.log.WithField("domain", e.Value).Debug("Blocked blocklisted domain lookup")
		return true
	}

	return false
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
