package archer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const fieldContentsBody = `[{"RequestedObject":{"FieldContents":{
  "101":{"Type":1,"FieldId":101,"Value":"<p>Critical <b>server</b></p>"},
  "102":{"Type":2,"FieldId":102,"Value":42},
  "103":{"Type":4,"FieldId":103,"Value":{"ValuesListIds":[5]}},
  "104":{"Type":19,"FieldId":104,"Value":"10.0.0.1"},
  "105":{"Type":1,"FieldId":105,"Value":""},
  "106":{"Type":6,"FieldId":106,"Value":null},
  "201":{"Type":3,"FieldId":201,"Value":"2024-01-02T00:00:00"},
  "202":{"Type":11,"FieldId":202,"Value":[1,2]}
}}}]`

func newDetailsArcher(t *testing.T) *fakeArcher {
	f := newFakeArcher(t)
	f.applications = `[{"RequestedObject":{"Id":1}},{"RequestedObject":{"Id":2}}]`
	f.fieldDefs = map[string]string{
		"1": `[{"RequestedObject":{"Id":101,"Name":"Description","Type":1}},
		       {"RequestedObject":{"Id":102,"Name":"Score","Type":2}},
		       {"RequestedObject":{"Id":103,"Name":"Status","Type":4}},
		       {"RequestedObject":{"Id":104,"Name":"Address","Type":19}},
		       {"RequestedObject":{"Id":105,"Name":"Notes","Type":1}}]`,
		"2": `[{"RequestedObject":{"Id":201,"Name":"Created","Type":3}},
		       {"RequestedObject":{"Id":202,"Name":"Evidence","Type":11}}]`,
	}
	f.fieldContents = func(string) (int, string) { return http.StatusOK, fieldContentsBody }
	return f
}

func TestGetDetailFields(t *testing.T) {
	f := newDetailsArcher(t)
	i := newTestIntegration(t, nil)

	fields, err := i.GetDetailFields(context.Background(), 555, f.options())
	require.NoError(t, err)

	var names, types []string
	for _, field := range fields {
		names = append(names, field.Name)
		types = append(types, field.Type)
	}
	assert.Equal(t, []string{"Address", "Created", "Description", "Score"}, names)
	assert.Equal(t, []string{"IP_ADDRESS", "DATE", "TEXT", "NUMERIC"}, types)

	assert.Equal(t, "Critical server", fields[2].Text())
	assert.Equal(t, "42", fields[3].Text())
	assert.Equal(t, "10.0.0.1", fields[0].Text())
}

func TestGetDetailFieldsRequestBody(t *testing.T) {
	f := newDetailsArcher(t)
	var got string
	f.fieldContents = func(body string) (int, string) {
		got = body
		return http.StatusOK, fieldContentsBody
	}
	i := newTestIntegration(t, nil)

	_, err := i.GetDetailFields(context.Background(), 555, f.options())
	require.NoError(t, err)
	assert.JSONEq(t, `{"FieldIds":[],"ContentIds":[555]}`, got)
}

func TestSchemaCacheIsReused(t *testing.T) {
	f := newDetailsArcher(t)
	i := newTestIntegration(t, nil)
	opts := f.options()

	first, err := i.GetDetailFields(context.Background(), 1, opts)
	require.NoError(t, err)
	second, err := i.GetDetailFields(context.Background(), 2, opts)
	require.NoError(t, err)
	again, err := i.GetDetailFields(context.Background(), 1, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, f.count("applications"))
	assert.Equal(t, 1, f.count("fielddefinition/1"))
	assert.Equal(t, 1, f.count("fielddefinition/2"))
	assert.Equal(t, 3, f.count("fieldcontent"))
	assert.Equal(t, 1, f.count("login"))

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	againJSON, err := json.Marshal(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(againJSON))
	assert.Len(t, second, len(first))
}

func TestDetailFieldJSON(t *testing.T) {
	f := newDetailsArcher(t)
	i := newTestIntegration(t, nil)

	fields, err := i.GetDetailFields(context.Background(), 1, f.options())
	require.NoError(t, err)

	out, err := json.Marshal(fields[3])
	require.NoError(t, err)
	assert.JSONEq(t, `{"Type":"NUMERIC","TypeId":2,"FieldId":102,"Value":42,"Name":"Score"}`, string(out))
}

func TestGetDetailFieldsFailure(t *testing.T) {
	f := newDetailsArcher(t)
	f.fieldContents = func(string) (int, string) {
		return http.StatusBadRequest, `[{"code":"E42","message":"content not found"}]`
	}
	i := newTestIntegration(t, nil)

	_, err := i.GetDetailFields(context.Background(), 9, f.options())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetailFieldsLookup))
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))

	var detailErr *DetailFieldsError
	require.True(t, errors.As(err, &detailErr))
	assert.Equal(t, "E42", detailErr.Detail)
	assert.Equal(t, http.StatusBadRequest, detailErr.Fields["statusCode"])

	out, err := json.Marshal(detailErr)
	require.NoError(t, err)
	assert.Equal(t, "E42", gjson.GetBytes(out, "errors.0.detail").String())
	assert.Equal(t, "fieldcontent", gjson.GetBytes(out, "errors.0.err.op").String())
}

func TestGetDetailFieldsWithoutSchema(t *testing.T) {
	f := newDetailsArcher(t)
	f.applications = `not json`
	i := newTestIntegration(t, nil)

	fields, err := i.GetDetailFields(context.Background(), 1, f.options())
	require.NoError(t, err, "an unreadable listing yields no applications")
	assert.Len(t, fields, 4)
	for _, field := range fields {
		assert.Empty(t, field.Name)
	}
}

func TestGetDetailFieldsLoginFailure(t *testing.T) {
	f := newDetailsArcher(t)
	f.loginStatus = http.StatusUnauthorized
	i := newTestIntegration(t, nil)

	_, err := i.GetDetailFields(context.Background(), 1, f.options())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.True(t, errors.Is(err, ErrDetailFieldsLookup))
	assert.Equal(t, 0, f.count("fieldcontent"))
}

func TestJoinDetailFieldsAcceptsArrays(t *testing.T) {
	values := gjson.Parse(`[
	  {"Type":1,"FieldId":9,"Value":"orphan"},
	  {"Type":1,"FieldId":2,"Value":"b"},
	  {"Type":1,"FieldId":1,"Value":"a"},
	  {"Type":25,"FieldId":3,"Value":"history"},
	  {"Type":2,"FieldId":4,"Value":0}
	]`)
	defs := []FieldDefinition{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Beta"}, {ID: 3, Name: "Log"}, {ID: 4, Name: "Zero"}}

	fields := joinDetailFields(values, defs)
	require.Len(t, fields, 3)
	assert.Equal(t, "Alpha", fields[0].Name)
	assert.Equal(t, "Beta", fields[1].Name)
	assert.Equal(t, "", fields[2].Name, "rows without a definition sort last")
	assert.Equal(t, int64(9), fields[2].FieldID)
}

func TestReadableDetail(t *testing.T) {
	assert.Equal(t, "nope", readableDetail(errors.New("boom"), `{"detail":"nope","code":"X"}`))
	assert.Equal(t, "X", readableDetail(errors.New("boom"), `{"code":"X","message":"m"}`))
	assert.Equal(t, "m", readableDetail(errors.New("boom"), `{"message":"m","title":"t"}`))
	assert.Equal(t, "boom", readableDetail(errors.New("boom"), `{"title":"t"}`))
	assert.Equal(t, "boom", readableDetail(errors.New("boom"), ``))
	assert.Equal(t, "Unknown Reason", readableDetail(errors.New(""), `{}`))
}

func TestOnMessage(t *testing.T) {
	f := newDetailsArcher(t)
	i := newTestIntegration(t, nil)

	reply, err := i.OnMessage(context.Background(), Message{
		Action: ActionGetDetailFields,
		Data:   json.RawMessage(`{"ContentId":555}`),
	}, f.options())
	require.NoError(t, err)
	out, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Equal(t, int64(4), gjson.GetBytes(out, "detailFields.#").Int())

	_, err = i.OnMessage(context.Background(), Message{Action: ActionGetDetailFields, Data: json.RawMessage(`{}`)}, f.options())
	assert.True(t, errors.Is(err, ErrDetailFieldsLookup))
	assert.True(t, errors.Is(err, ErrInvalidEntity))

	_, err = i.OnMessage(context.Background(), Message{Action: "explode"}, f.options())
	assert.Error(t, err)
}

func TestFailedDetailLookupDoesNotFailSharedSchemaFill(t *testing.T) {
	f := newDetailsArcher(t)
	appsGate := make(chan struct{})
	failGate := make(chan struct{})
	f.applicationsGate = appsGate
	f.fieldContents = func(body string) (int, string) {
		if strings.Contains(body, "[999]") {
			<-failGate
			return http.StatusNotFound, `{"message":"no such record"}`
		}
		return http.StatusOK, fieldContentsBody
	}
	i := newTestIntegration(t, nil)
	opts := f.options()

	type outcome struct {
		fields []DetailField
		err    error
	}
	run := func(contentID int64) <-chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			fields, err := i.GetDetailFields(context.Background(), contentID, opts)
			ch <- outcome{fields, err}
		}()
		return ch
	}

	// The bad record starts the schema fill, which stays in flight.
	bad := run(999)
	require.Eventually(t, func() bool {
		return f.count("applications") == 1 && f.count("fieldcontent") == 1
	}, 2*time.Second, 5*time.Millisecond)

	// The good record joins the same fill.
	good := run(1)
	require.Eventually(t, func() bool { return f.count("fieldcontent") == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	close(failGate)
	badOut := <-bad
	require.Error(t, badOut.err)
	var detailErr *DetailFieldsError
	require.True(t, errors.As(badOut.err, &detailErr))
	assert.Equal(t, "no such record", detailErr.Detail)

	close(appsGate)
	goodOut := <-good
	require.NoError(t, goodOut.err)
	assert.Len(t, goodOut.fields, 4)
	assert.Equal(t, 1, f.count("applications"))
}
