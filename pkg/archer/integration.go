// Package archer implements the RSA Archer data-source connector: session
// handling, entity lookups against ContentHits and on-demand detail fields.
package archer

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/sw33tLie/archerlookup/pkg/whttp"
)

const (
	DefaultSessionTTL  = time.Hour
	DefaultSchemaTTL   = 24 * time.Hour
	DefaultConcurrency = 5
)

// ResultRecorder receives the results of every successful bulk lookup.
type ResultRecorder interface {
	RecordLookups(ctx context.Context, results []LookupResult) error
}

// Config holds the process-lifetime settings of an Integration.
type Config struct {
	Request     whttp.RequestOptions
	Concurrency int // defaults to 5 if <= 0
	SessionTTL  time.Duration
	SchemaTTL   time.Duration
	Log         logrus.FieldLogger // optional; nil = utils.Log
	Recorder    ResultRecorder     // optional

	// Client overrides the transport built from Request.
	Client Doer
}

// Integration owns every piece of cross-request state: the session cache, the
// schema cache and the compiled blocklist.
type Integration struct {
	client      Doer
	log         logrus.FieldLogger
	auth        *Authenticator
	blocklist   *Blocklist
	schema      *SchemaCache
	concurrency int
	recorder    ResultRecorder
}

// New sets up an Integration. Transport settings (certificates, proxy, TLS
// verification) are read once here.
func New(cfg Config) (*Integration, error) {
	log := cfg.Log
	if log == nil {
		log = utils.Log
	}

	client := cfg.Client
	if client == nil {
		c, err := whttp.NewClient(cfg.Request, log)
		if err != nil {
			return nil, err
		}
		client = c
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	schemaTTL := cfg.SchemaTTL
	if schemaTTL <= 0 {
		schemaTTL = DefaultSchemaTTL
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	i := &Integration{
		client:      client,
		log:         log,
		auth:        NewAuthenticator(client, NewTTLCache(sessionTTL, 10*time.Minute), sessionTTL, log),
		blocklist:   NewBlocklist(log),
		concurrency: concurrency,
		recorder:    cfg.Recorder,
	}
	i.schema = NewSchemaCache(i.authedRequest, NewTTLCache(schemaTTL, time.Hour), schemaTTL, log)
	return i, nil
}

// Authenticator exposes the session handling shared by all pipelines.
func (i *Integration) Authenticator() *Authenticator { return i.auth }

// authedRequest sends a request carrying a session token. It returns the body
// of a 200 response; every other outcome is an error. A 401 also drops the
// cached token so the next independent call logs in again.
func (i *Integration) authedRequest(ctx context.Context, opts Options, op string, wReq *whttp.WHTTPReq) (string, error) {
	token, err := i.auth.Token(ctx, opts)
	if err != nil {
		return "", err
	}

	wReq.Headers = append(wReq.Headers, whttp.WHTTPHeader{Name: "Authorization", Value: sessionHeaderPrefix + token})
	i.log.WithFields(logrus.Fields{"op": op, "method": wReq.Method, "uri": wReq.URL}).Trace("Request URI")

	res, err := i.client.SendHTTPRequest(ctx, wReq)
	if err != nil {
		i.log.WithError(err).WithField("op", op).Error("HTTP Request Error")
		return "", transportError(op, err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		return res.BodyString, nil
	case http.StatusUnauthorized:
		i.log.WithFields(logrus.Fields{"op": op, "detail": "Unauthorized RSA Archer request."}).Error("401 Error")
		i.auth.Invalidate(opts)
	default:
		i.log.WithFields(logrus.Fields{"op": op, "statusCode": res.StatusCode, "body": res.BodyString}).Error("Unexpected Archer response")
	}
	return "", &StatusError{Op: op, StatusCode: res.StatusCode, Body: res.BodyString}
}
