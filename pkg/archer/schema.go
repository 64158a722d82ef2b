package archer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/pkg/whttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	applicationIDsSlot   = "allApplicationIds"
	fieldDefinitionsSlot = "allFieldDefinitions"
)

// FieldDefinition is the part of an Archer field definition the resolver needs.
type FieldDefinition struct {
	ID      int64  `json:"Id"`
	Name    string `json:"Name"`
	Type    int    `json:"Type"`
	Alias   string `json:"Alias,omitempty"`
	LevelID int64  `json:"LevelId,omitempty"`
}

type requestFunc func(ctx context.Context, opts Options, op string, wReq *whttp.WHTTPReq) (string, error)

// SchemaCache keeps the nearly static application and field definition lists.
// Once filled, both slots are read-only until their TTL expires.
type SchemaCache struct {
	request requestFunc
	cache   *TTLCache
	ttl     time.Duration
	log     logrus.FieldLogger
}

func NewSchemaCache(request requestFunc, cache *TTLCache, ttl time.Duration, log logrus.FieldLogger) *SchemaCache {
	return &SchemaCache{request: request, cache: cache, ttl: ttl, log: log}
}

// slots are per Archer host so tenants never share schema.
func slotKey(opts Options, slot string) string {
	return opts.baseURL() + "|" + slot
}

// ApplicationIDs lists every Archer application ID.
func (s *SchemaCache) ApplicationIDs(ctx context.Context, opts Options) ([]int64, error) {
	return getOrPopulate(ctx, s.cache, slotKey(opts, applicationIDsSlot), s.ttl, func(ctx context.Context) ([]int64, error) {
		body, err := s.request(ctx, opts, "applications", &whttp.WHTTPReq{
			Method: http.MethodGet,
			URL:    opts.baseURL() + "/api/core/system/application/",
		})
		if err != nil {
			return nil, err
		}

		var ids []int64
		for _, id := range gjson.Get(body, "#.RequestedObject.Id").Array() {
			ids = append(ids, id.Int())
		}
		s.log.WithField("applications", len(ids)).Debug("Cached Archer application IDs")
		return ids, nil
	})
}

// FieldDefinitions returns the field definitions of every application, flattened.
func (s *SchemaCache) FieldDefinitions(ctx context.Context, opts Options) ([]FieldDefinition, error) {
	return getOrPopulate(ctx, s.cache, slotKey(opts, fieldDefinitionsSlot), s.ttl, func(ctx context.Context) ([]FieldDefinition, error) {
		appIDs, err := s.ApplicationIDs(ctx, opts)
		if err != nil {
			return nil, err
		}

		var mu sync.Mutex
		var all []FieldDefinition

		g, gctx := errgroup.WithContext(ctx)
		for _, appID := range appIDs {
			g.Go(func() error {
				defs, err := s.fetchFieldDefinitions(gctx, opts, appID)
				if err != nil {
					return err
				}
				mu.Lock()
				all = append(all, defs...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		s.log.WithField("fieldDefinitions", len(all)).Debug("Cached Archer field definitions")
		return all, nil
	})
}

func (s *SchemaCache) fetchFieldDefinitions(ctx context.Context, opts Options, appID int64) ([]FieldDefinition, error) {
	body, err := s.request(ctx, opts, "fielddefinitions", &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/api/core/system/fielddefinition/application/%d", opts.baseURL(), appID),
	})
	if err != nil {
		return nil, err
	}

	var defs []FieldDefinition
	for _, obj := range gjson.Get(body, "#.RequestedObject").Array() {
		var def FieldDefinition
		if err := json.Unmarshal([]byte(obj.Raw), &def); err != nil {
			return nil, fmt.Errorf("could not decode field definition of application %d: %w", appID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
