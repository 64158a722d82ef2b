package archer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/pkg/whttp"
	"github.com/tidwall/gjson"
)

const sessionHeaderPrefix = "Archer session-id="

// Doer sends a single HTTP request. *whttp.Client satisfies it.
type Doer interface {
	SendHTTPRequest(ctx context.Context, wReq *whttp.WHTTPReq) (*whttp.WHTTPRes, error)
}

// Authenticator hands out Archer session tokens, logging in only when the
// credential tuple has no live token in the session cache.
type Authenticator struct {
	client Doer
	cache  *TTLCache
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewAuthenticator(client Doer, cache *TTLCache, ttl time.Duration, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{client: client, cache: cache, ttl: ttl, log: log}
}

// Token returns a session token for the credentials in opts.
func (a *Authenticator) Token(ctx context.Context, opts Options) (string, error) {
	return getOrPopulate(ctx, a.cache, opts.sessionKey(), a.ttl, func(ctx context.Context) (string, error) {
		return a.login(ctx, opts)
	})
}

// Invalidate forgets the cached token for the credentials in opts.
func (a *Authenticator) Invalidate(opts Options) {
	a.cache.Delete(opts.sessionKey())
}

type loginRequest struct {
	Username     string
	Password     string
	InstanceName string
	UserDomain   string
}

func (a *Authenticator) login(ctx context.Context, opts Options) (string, error) {
	body, err := json.Marshal(loginRequest{
		Username:     opts.UserName,
		Password:     opts.UserPass,
		InstanceName: opts.InstanceID,
		UserDomain:   opts.UserDomain,
	})
	if err != nil {
		return "", err
	}

	res, err := a.client.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     opts.baseURL() + "/api/core/security/login",
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/json"}},
		Body:    string(body),
	})
	if err != nil {
		a.log.WithError(err).Error("Error getting Archer session token")
		return "", transportError("login", err)
	}

	if res.StatusCode != http.StatusOK {
		a.log.WithFields(logrus.Fields{"statusCode": res.StatusCode, "body": res.BodyString}).Error("Archer login failed")
		return "", fmt.Errorf("%w: login returned status %d", ErrAuthFailure, res.StatusCode)
	}

	token := gjson.Get(res.BodyString, "RequestedObject.SessionToken").String()
	if token == "" {
		a.log.WithField("body", res.BodyString).Error("Archer login response has no session token")
		return "", fmt.Errorf("%w: login response has no session token", ErrAuthFailure)
	}

	a.log.WithField("userName", opts.UserName).Trace("Good Archer login")
	return token, nil
}
