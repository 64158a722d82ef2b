package archer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/pkg/whttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// DisplayFieldTypes maps Archer field type codes to the labels of the types
// shown in detail rows. Codes missing here (values lists, cross references,
// attachments, history logs, ...) are never displayed.
var DisplayFieldTypes = map[int]string{
	1:  "TEXT",
	2:  "NUMERIC",
	3:  "DATE",
	6:  "TRACKINGID",
	19: "IP_ADDRESS",
	21: "FIRST_PUBLISHED",
	22: "LAST_UPDATED",
}

// DetailField is one displayable field value of a record. It serializes as the
// raw Archer field value with Name, Type and TypeId added.
type DetailField struct {
	FieldID int64
	Name    string
	Type    string
	TypeID  int
	Value   json.RawMessage

	raw map[string]json.RawMessage
}

func (f DetailField) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.raw)+3)
	for k, v := range f.raw {
		out[k] = v
	}
	out["Name"] = f.Name
	out["Type"] = f.Type
	out["TypeId"] = f.TypeID
	return json.Marshal(out)
}

// Text renders the value for a terminal. Rich text is reduced to its text content.
func (f DetailField) Text() string {
	v := gjson.ParseBytes(f.Value)
	if v.Type != gjson.String {
		return strings.TrimSpace(v.Raw)
	}
	if !strings.Contains(v.Str, "<") {
		return strings.TrimSpace(v.Str)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(v.Str))
	if err != nil {
		return strings.TrimSpace(v.Str)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// GetDetailFields resolves the displayable fields of one Archer record. Any
// failure is returned as a *DetailFieldsError.
func (i *Integration) GetDetailFields(ctx context.Context, contentID int64, opts Options) ([]DetailField, error) {
	var (
		definitions []FieldDefinition
		values      gjson.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		definitions, err = i.schema.FieldDefinitions(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		values, err = i.fieldValues(gctx, contentID, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		detailErr := newDetailFieldsError(err)
		i.log.WithFields(logrus.Fields{
			"detail":         "Failed Detail Fields Lookup",
			"contentId":      contentID,
			"host":           opts.Host,
			"formattedError": detailErr.Fields,
		}).Error("Detail Fields Lookup Failed")
		return nil, detailErr
	}

	return joinDetailFields(values, definitions), nil
}

type fieldContentRequest struct {
	FieldIds   []int64
	ContentIds []int64
}

func (i *Integration) fieldValues(ctx context.Context, contentID int64, opts Options) (gjson.Result, error) {
	body, err := json.Marshal(fieldContentRequest{FieldIds: []int64{}, ContentIds: []int64{contentID}})
	if err != nil {
		return gjson.Result{}, err
	}

	res, err := i.authedRequest(ctx, opts, "fieldcontent", &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     opts.baseURL() + "/api/core/content/fieldcontent",
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/json"}},
		Body:    string(body),
	})
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.Valid(res) {
		return gjson.Result{}, fmt.Errorf("%w: field content response is not JSON", ErrUnexpectedStatus)
	}

	return gjson.Get(res, "0.RequestedObject.FieldContents"), nil
}

// joinDetailFields names and types each field value with a truthy Value,
// drops undisplayable types and orders the rows by name, unnamed rows last.
func joinDetailFields(values gjson.Result, definitions []FieldDefinition) []DetailField {
	names := make(map[int64]string, len(definitions))
	for _, def := range definitions {
		if _, seen := names[def.ID]; !seen {
			names[def.ID] = def.Name
		}
	}

	fields := []DetailField{}
	values.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() || !truthy(v.Get("Value")) {
			return true
		}

		typeID := int(v.Get("Type").Int())
		label, ok := DisplayFieldTypes[typeID]
		if !ok {
			return true
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(v.Raw), &raw); err != nil {
			return true
		}

		fieldID := v.Get("FieldId").Int()
		fields = append(fields, DetailField{
			FieldID: fieldID,
			Name:    names[fieldID],
			Type:    label,
			TypeID:  typeID,
			Value:   json.RawMessage(v.Get("Value").Raw),
			raw:     raw,
		})
		return true
	})

	// Rows whose definition is unknown have no name and go last.
	sort.SliceStable(fields, func(a, b int) bool {
		if (fields[a].Name == "") != (fields[b].Name == "") {
			return fields[b].Name == ""
		}
		return fields[a].Name < fields[b].Name
	})
	return fields
}

// truthy follows JavaScript truthiness, which is what Archer clients expect of Value.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return v.Exists()
}
