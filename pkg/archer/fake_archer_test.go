package archer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testToken = "SESSION-1"

// fakeArcher is an in-process stand-in for the Archer REST API.
type fakeArcher struct {
	srv *httptest.Server

	mu          sync.Mutex
	calls       map[string]int
	searched    []string
	searchAuth  []string
	loginBodies []map[string]string

	loginStatus int
	loginBody   string
	// search returns status and body for a keyword; default is an empty hit list.
	search func(keyword string) (int, string)

	applications  string
	fieldDefs     map[string]string
	fieldContents func(body string) (int, string)

	// applicationsGate, when set, holds the application listing until closed.
	applicationsGate chan struct{}
}

func newFakeArcher(t *testing.T) *fakeArcher {
	f := &fakeArcher{
		calls:       map[string]int{},
		loginStatus: http.StatusOK,
		loginBody:   fmt.Sprintf(`{"IsSuccessful":true,"RequestedObject":{"SessionToken":%q}}`, testToken),
		search: func(string) (int, string) {
			return http.StatusOK, `{"value":[]}`
		},
		applications: `[]`,
		fieldDefs:    map[string]string{},
		fieldContents: func(string) (int, string) {
			return http.StatusOK, `[{"RequestedObject":{"FieldContents":{}}}]`
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/core/security/login", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.calls["login"]++
		f.loginBodies = append(f.loginBodies, body)
		status, resp := f.loginStatus, f.loginBody
		f.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, resp)
	})
	mux.HandleFunc("/api/V2/internal/ContentHits", func(w http.ResponseWriter, r *http.Request) {
		keyword := strings.TrimSuffix(strings.TrimPrefix(r.URL.Query().Get("$filter"), "Keyword eq '"), "'")
		f.mu.Lock()
		f.calls["search"]++
		f.searched = append(f.searched, keyword)
		f.searchAuth = append(f.searchAuth, r.Header.Get("Authorization"))
		search := f.search
		f.mu.Unlock()
		status, resp := search(keyword)
		w.WriteHeader(status)
		io.WriteString(w, resp)
	})
	mux.HandleFunc("/api/core/system/application/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls["applications"]++
		resp, gate := f.applications, f.applicationsGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		io.WriteString(w, resp)
	})
	mux.HandleFunc("/api/core/system/fielddefinition/application/", func(w http.ResponseWriter, r *http.Request) {
		appID := strings.TrimPrefix(r.URL.Path, "/api/core/system/fielddefinition/application/")
		f.mu.Lock()
		f.calls["fielddefinition/"+appID]++
		resp, ok := f.fieldDefs[appID]
		f.mu.Unlock()
		if !ok {
			resp = `[]`
		}
		io.WriteString(w, resp)
	})
	mux.HandleFunc("/api/core/content/fieldcontent", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls["fieldcontent"]++
		handler := f.fieldContents
		f.mu.Unlock()
		status, resp := handler(string(body))
		w.WriteHeader(status)
		io.WriteString(w, resp)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeArcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeArcher) options() Options {
	opts := DefaultOptions()
	opts.Host = f.srv.URL
	opts.UserName = "api"
	opts.UserPass = "secret"
	opts.InstanceID = "Archer"
	opts.UserDomain = "corp"
	return opts
}

func newTestIntegration(t *testing.T, recorder ResultRecorder) *Integration {
	log := logrus.New()
	log.SetOutput(io.Discard)
	i, err := New(Config{Log: log, Recorder: recorder})
	require.NoError(t, err)
	return i
}
