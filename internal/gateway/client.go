package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ping_client/internal/domain"
	"ping_client/internal/metrics"
)

// Request describes one API call.
type Request struct {
	Method string
	// Path is appended verbatim to the base URL. Absolute http(s) URLs are
	// used as they are.
	Path  string
	Query url.Values
	// Body is encoded as JSON when non-nil. Ignored when Multipart is set.
	Body      any
	Multipart *Multipart
	// Token, when set, is used instead of the stored credential.
	Token string
}

type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadJSON
	PayloadText
)

// Payload is a decoded response body.
type Payload struct {
	Status int
	Kind   PayloadKind
	JSON   json.RawMessage
	Text   string
}

type Options struct {
	HTTPClient *http.Client
	// Limiter paces outgoing calls. Waiting honours the call's context.
	Limiter   *rate.Limiter
	UserAgent string
}

// Client is the single path from the rest of the module to the Ping API.
// It attaches the bearer credential, encodes and decodes bodies and turns
// every failure into an *Error. It never retries and never logs.
type Client struct {
	baseURL   string
	http      *http.Client
	creds     domain.CredentialStore
	limiter   *rate.Limiter
	userAgent string
}

func New(baseURL string, creds domain.CredentialStore, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "ping-client"
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		creds:     creds,
		limiter:   opts.Limiter,
		userAgent: ua,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs the request and returns the decoded payload. A non-2xx
// status is an error of KindStatus; its body is still decoded to find the
// server's message.
func (c *Client) Do(ctx context.Context, req Request) (*Payload, error) {
	started := time.Now()
	p, err := c.do(ctx, req)
	metrics.ObserveRequest(req.Method, outcome(err), started)
	return p, err
}

func (c *Client) do(ctx context.Context, req Request) (*Payload, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(ctx, err)
		}
	}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: FallbackMessage, Err: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	p := &Payload{Status: resp.StatusCode}
	ct := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "application/json"):
		if json.Valid(raw) {
			p.Kind = PayloadJSON
			p.JSON = raw
		} else if ok(resp.StatusCode) {
			return nil, decodeError(resp.StatusCode, errors.New("invalid JSON body"))
		}
	case strings.Contains(ct, "text/plain"):
		p.Kind = PayloadText
		p.Text = string(raw)
	}

	if !ok(resp.StatusCode) {
		return p, &Error{
			Kind:    KindStatus,
			Status:  resp.StatusCode,
			Message: failureMessage(p, resp),
		}
	}
	return p, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType = "application/json"
	)
	if req.Multipart != nil {
		buf, ct, err := req.Multipart.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	} else if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(ctx, req.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// token prefers the explicit credential. Any failure to read the store is
// treated the same as an absent credential.
func (c *Client) token(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.creds == nil {
		return ""
	}
	tok, err := c.creds.Get(ctx)
	if err != nil {
		return ""
	}
	return tok
}

// Decode stores the payload in v, which must be a non-nil pointer. Text
// payloads only decode into *string. An absent or null body is a decode
// failure except for *string targets. If v implements Validate, it runs
// after decoding.
func (p *Payload) Decode(v any) error {
	switch p.Kind {
	case PayloadText:
		s, isString := v.(*string)
		if !isString {
			return decodeError(p.Status, fmt.Errorf("text body for %T", v))
		}
		*s = p.Text
	case PayloadJSON:
		if bytes.Equal(bytes.TrimSpace(p.JSON), []byte("null")) {
			if _, isString := v.(*string); isString {
				return nil
			}
			return decodeError(p.Status, errors.New("null body"))
		}
		if err := json.Unmarshal(p.JSON, v); err != nil {
			return decodeError(p.Status, err)
		}
	default:
		s, isString := v.(*string)
		if !isString {
			return decodeError(p.Status, errors.New("empty body"))
		}
		*s = ""
	}

	if val, isValidator := v.(Validator); isValidator {
		if err := val.Validate(); err != nil {
			return decodeError(p.Status, err)
		}
	}
	return nil
}

// Validator is implemented by response types that check their own shape.
type Validator interface {
	Validate() error
}

// Call performs req and decodes the payload into a T.
func Call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	p, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := p.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func failureMessage(p *Payload, resp *http.Response) string {
	if p.Kind == PayloadJSON {
		var body struct {
			Message any `json:"message"`
		}
		if err := json.Unmarshal(p.JSON, &body); err == nil {
			if s, isString := body.Message.(string); isString && s != "" {
				return s
			}
		}
	}
	if text := statusText(resp); text != "" {
		return text
	}
	return FallbackMessage
}

// statusText returns the reason phrase of the status line.
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
}

func transportError(ctx context.Context, err error) *Error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, Message: "Request canceled", Err: err}
	}
	return &Error{Kind: KindTransport, Message: FallbackMessage, Err: err}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind.String()
	}
	return "unknown"
}
