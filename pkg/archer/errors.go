package archer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrAuthFailure means Archer rejected the credentials or the session token,
	// or the login response was malformed.
	ErrAuthFailure = errors.New("archer authentication failed")
	// ErrInvalidEntity is returned for entities without a value.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrUnexpectedStatus is matched by every *StatusError except a 401,
	// which matches ErrAuthFailure instead.
	ErrUnexpectedStatus = errors.New("unexpected archer response")
	// ErrTransport wraps network, TLS and timeout failures.
	ErrTransport = errors.New("archer request failed")
	// ErrDetailFieldsLookup is matched by every *DetailFieldsError.
	ErrDetailFieldsLookup = errors.New("detail fields lookup failed")
)

// StatusError carries a non-success Archer response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected archer response (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Is makes a 401 match ErrAuthFailure and every other status ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnexpectedStatus:
		return e.StatusCode != 401
	case ErrAuthFailure:
		return e.StatusCode == 401
	}
	return false
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// DetailFieldsError is the single error surfaced by the detail fields pipeline.
type DetailFieldsError struct {
	Err    error
	Detail string
	Fields map[string]interface{}
}

func newDetailFieldsError(err error) *DetailFieldsError {
	fields := map[string]interface{}{"message": err.Error()}

	var body string
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		fields["op"] = statusErr.Op
		fields["statusCode"] = statusErr.StatusCode
		body = statusErr.Body
		if gjson.Valid(body) {
			fields["body"] = json.RawMessage(body)
		} else {
			fields["body"] = body
		}
	}

	return &DetailFieldsError{
		Err:    err,
		Detail: readableDetail(err, body),
		Fields: fields,
	}
}

// readableDetail picks the first available of detail, code, message, title
// and description, preferring what Archer itself reported.
func readableDetail(err error, body string) string {
	for _, key := range []string{"detail", "code", "message", "title", "description"} {
		if gjson.Valid(body) {
			if v := gjson.Get(body, key).String(); v != "" {
				return v
			}
			if v := gjson.Get(body, "0."+key).String(); v != "" {
				return v
			}
		}
		if key == "message" && err.Error() != "" {
			return err.Error()
		}
	}
	return "Unknown Reason"
}

func (e *DetailFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDetailFieldsLookup, e.Detail)
}

func (e *DetailFieldsError) Unwrap() error { return e.Err }

func (e *DetailFieldsError) Is(target error) bool { return target == ErrDetailFieldsLookup }

// MarshalJSON renders the error in the shape the detail row UI expects.
func (e *DetailFieldsError) MarshalJSON() ([]byte, error) {
	type item struct {
		Err    map[string]interface{} `json:"err"`
		Detail string                 `json:"detail"`
	}
	return json.Marshal(struct {
		Errors []item `json:"errors"`
	}{Errors: []item{{Err: e.Fields, Detail: e.Detail}}})
}
