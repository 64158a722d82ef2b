package archer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/pkg/entity"
	"github.com/sw33tLie/archerlookup/pkg/whttp"
	"github.com/tidwall/gjson"
)

const maxSearchResults = 10

// Auxiliary detail categories requested with every search.
var searchDetailFlags = []string{
	"whois",
	"hostDetails",
	"ipDetails",
	"linkedAssetCounts",
	"recentPDNS",
	"subDomainPDNS",
	"openPorts",
	"certificates",
}

// LookupResult pairs an entity with its enrichment. A nil Data is a miss.
type LookupResult struct {
	Entity entity.Entity `json:"entity"`
	Data   *ResultData   `json:"data"`
}

type ResultData struct {
	Summary []string        `json:"summary"`
	Details json.RawMessage `json:"details"`
}

// HitCount returns the number of ContentHits in the result, 0 for a miss.
func (r LookupResult) HitCount() int {
	if r.Data == nil {
		return 0
	}
	return int(gjson.GetBytes(r.Data.Details, "value.#").Int())
}

func searchURL(opts Options, value string) string {
	filter := "Keyword eq '" + strings.ReplaceAll(value, "'", "''") + "'"

	var b strings.Builder
	b.WriteString(opts.baseURL())
	b.WriteString("/api/V2/internal/ContentHits?$filter=")
	b.WriteString(queryEscape(filter))
	b.WriteString("&$top=")
	b.WriteString(strconv.Itoa(maxSearchResults))
	for _, flag := range searchDetailFlags {
		b.WriteString("&")
		b.WriteString(flag)
		b.WriteString("=true")
	}
	return b.String()
}

// queryEscape percent-encodes spaces as %20, which OData servers expect.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hitSummary(n int) string {
	if n == 1 {
		return "1 hit"
	}
	return fmt.Sprintf("%d hits", n)
}

// lookupEntity runs one ContentHits search for e.
func (i *Integration) lookupEntity(ctx context.Context, e entity.Entity, opts Options) (LookupResult, error) {
	if e.Value == "" {
		i.log.Error("No value of entity!")
		return LookupResult{}, fmt.Errorf("%w: empty value", ErrInvalidEntity)
	}

	i.log.WithField("entity", e.Value).Debug("Looking up entity")

	body, err := i.authedRequest(ctx, opts, "search", &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    searchURL(opts, e.Value),
	})
	if err != nil {
		return LookupResult{}, err
	}

	hits := gjson.Get(body, "value")
	if !gjson.Valid(body) || !hits.IsArray() {
		i.log.WithField("body", body).Error("Malformed Archer search response")
		return LookupResult{}, &StatusError{Op: "search", StatusCode: http.StatusOK, Body: body}
	}

	hitCount := len(hits.Array())
	i.log.WithFields(logrus.Fields{"entity": e.Value, "hits": hitCount}).Debug("Result of Lookup")

	if hitCount == 0 {
		return LookupResult{Entity: e}, nil
	}

	return LookupResult{
		Entity: e,
		Data: &ResultData{
			Summary: []string{hitSummary(hitCount)},
			Details: json.RawMessage(body),
		},
	}, nil
}
