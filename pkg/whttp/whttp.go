package whttp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const USER_AGENT = "archerlookup/1.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	// Body is sent as-is; set a Content-Type header alongside it.
	Body string
}

type WHTTPRes struct {
	StatusCode int
	BodyString string
}

// RequestOptions are the process-wide transport settings applied once at startup.
type RequestOptions struct {
	Cert               string        `mapstructure:"cert"`
	Key                string        `mapstructure:"key"`
	Passphrase         string        `mapstructure:"passphrase"`
	CA                 string        `mapstructure:"ca"`
	Proxy              string        `mapstructure:"proxy"`
	RejectUnauthorized *bool         `mapstructure:"rejectUnauthorized"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryMax           int           `mapstructure:"retryMax"`
	RequestsPerSecond  float64       `mapstructure:"requestsPerSecond"`
}

// Client sends requests through a retrying HTTP client configured from RequestOptions.
type Client struct {
	retry   *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a Client. Certificate and CA paths are read from disk.
func NewClient(opts RequestOptions, log logrus.FieldLogger) (*Client, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	tlsConfig, err := buildTLSConfig(opts)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = leveledLogger{log: log}
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	// Callers classify the final response themselves.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	transport, ok := retryClient.HTTPClient.Transport.(*http.Transport)
	if !ok {
		transport = http.DefaultTransport.(*http.Transport).Clone()
		retryClient.HTTPClient.Transport = transport
	}
	transport.TLSClientConfig = tlsConfig

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retryClient.HTTPClient.Timeout = timeout

	c := &Client{retry: retryClient}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

// SendHTTPRequest performs wReq and returns the status code and full body.
// A non-nil error means no usable response was received.
func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body interface{}
	if wReq.Body != "" {
		body = []byte(wReq.Body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}, nil
}

func buildTLSConfig(opts RequestOptions) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.RejectUnauthorized != nil && !*opts.RejectUnauthorized {
		tlsConfig.InsecureSkipVerify = true
	}

	if opts.CA != "" {
		caPEM, err := os.ReadFile(opts.CA)
		if err != nil {
			return nil, fmt.Errorf("could not read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in CA file %s", opts.CA)
		}
		tlsConfig.RootCAs = pool
	}

	if opts.Cert != "" || opts.Key != "" {
		if opts.Cert == "" || opts.Key == "" {
			return nil, errors.New("client certificate requires both cert and key")
		}
		certPEM, err := os.ReadFile(opts.Cert)
		if err != nil {
			return nil, fmt.Errorf("could not read cert file: %w", err)
		}
		keyPEM, err := os.ReadFile(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("could not read key file: %w", err)
		}
		if opts.Passphrase != "" {
			keyPEM, err = decryptKey(keyPEM, opts.Passphrase)
			if err != nil {
				return nil, err
			}
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("invalid client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// decryptKey handles legacy passphrase-protected PEM keys. Unencrypted keys pass through.
func decryptKey(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("key file is not PEM encoded")
	}
	//lint:ignore SA1019 the integration accepts legacy encrypted keys
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	//lint:ignore SA1019 see above
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("could not decrypt key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

// leveledLogger routes retryablehttp's logging into logrus.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Trace(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}
