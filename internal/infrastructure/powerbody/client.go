package powerbody

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 32 * 1024 * 1024 // the full product list is large

// Client is a PowerBody SOAP client. It owns the session lifecycle: every
// call ensures a fresh session first, and a retry always re-authenticates
// before the next attempt. Product reads go through the cache; mutations
// never do.
type Client struct {
	config     *Config
	httpClient *http.Client
	cache      integration.ProductCache
	logger     *zap.Logger

	mu      sync.Mutex
	session Session

	nowFunc   func() time.Time
	sleepFunc func(time.Duration)
}

// NewClient creates a PowerBody client. cache may not be nil; pass a cache
// with a zero TTL to effectively disable caching.
func NewClient(config *Config, cache integration.ProductCache, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		cache:     cache,
		logger:    logger.Named("powerbody"),
		nowFunc:   time.Now,
		sleepFunc: time.Sleep,
	}, nil
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// ensureFresh returns a usable session, logging in when the current one is
// absent or past its lifetime.
func (c *Client) ensureFresh(ctx context.Context) (Session, error) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current.Fresh(c.nowFunc(), c.config.SessionLifetime) {
		return current, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", integration.ErrAuthFailed, err)
	}

	fresh := Session{Token: token, ObtainedAt: c.nowFunc()}
	c.mu.Lock()
	c.session = fresh
	c.mu.Unlock()

	c.logger.Debug("session renewed")
	return fresh, nil
}

// invalidateSession drops the current session so the next call logs in again
func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
}

// login obtains a fresh session token
func (c *Client) login(ctx context.Context) (string, error) {
	body, err := c.post(ctx, soapLoginBody(c.config.Username, c.config.APIKey))
	if err != nil {
		return "", err
	}
	token, err := extractReturnValue(body)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("powerbody: login returned empty session")
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call invokes a remote method with JSON-encoded params, retrying transient
// failures. Every retry re-authenticates first: session loss is the most
// common transient failure, and a stale token poisons all further attempts.
// The returned bytes are the decoded JSON result.
func (c *Client) call(ctx context.Context, method string, params any) ([]byte, error) {
	args, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("powerbody: encode params for %s: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.invalidateSession()
			backoff := c.config.RetryBackoffBase * time.Duration(1<<uint(attempt))
			c.logger.Warn("retrying call",
				zap.String("method", method),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			c.sleepFunc(backoff)
		}

		result, err := c.attempt(ctx, method, args)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		integration.ErrRetryExhausted, method, c.config.MaxRetries, lastErr)
}

// attempt performs a single login-if-needed plus method invocation
func (c *Client) attempt(ctx context.Context, method string, args []byte) ([]byte, error) {
	session, err := c.ensureFresh(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, soapCallBody(session.Token, method, string(args)))
	if err != nil {
		if errors.Is(err, integration.ErrSessionExpired) {
			c.invalidateSession()
		}
		return nil, err
	}

	value, err := extractReturnValue(body)
	if err != nil {
		return nil, err
	}
	return decodeResult(value), nil
}

// post sends one SOAP envelope and returns the raw response body
func (c *Client) post(ctx context.Context, envelopeBody string) ([]byte, error) {
	envelope := soapEnvelope(envelopeBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint,
		bytes.NewReader([]byte(envelope)))
	if err != nil {
		return nil, fmt.Errorf("powerbody: create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("powerbody: read response: %w", err)
	}

	if fault := parseFault(body); fault != nil {
		if fault.sessionRelated() {
			return nil, fmt.Errorf("%w: %s", integration.ErrSessionExpired, fault.String)
		}
		return nil, fmt.Errorf("%w: SOAP fault %s: %s",
			integration.ErrRequestFailed, fault.Code, fault.String)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrRequestFailed, resp.StatusCode)
	}

	return body, nil
}

// ---------------------------------------------------------------------------
// SOAP plumbing
// ---------------------------------------------------------------------------

// soapEnvelope wraps a body fragment in a SOAP 1.1 envelope
func soapEnvelope(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<SOAP-ENV:Body>` + body + `</SOAP-ENV:Body></SOAP-ENV:Envelope>`
}

func soapLoginBody(username, apiKey string) string {
	return `<login><username>` + xmlEscape(username) + `</username>` +
		`<apiKey>` + xmlEscape(apiKey) + `</apiKey></login>`
}

func soapCallBody(sessionID, method, args string) string {
	return `<call><sessionId>` + xmlEscape(sessionID) + `</sessionId>` +
		`<resourcePath>` + xmlEscape(method) + `</resourcePath>` +
		`<args>` + xmlEscape(args) + `</args></call>`
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// soapFault is a SOAP 1.1 fault
type soapFault struct {
	Code   string
	String string
}

// sessionRelated reports whether the fault means the session token is dead.
// Magento-style APIs use fault code 5 for expired sessions.
func (f *soapFault) sessionRelated() bool {
	if f.Code == "5" {
		return true
	}
	lower := strings.ToLower(f.String)
	return strings.Contains(lower, "session")
}

// parseFault extracts a SOAP fault from a response body, or nil if none
func parseFault(body []byte) *soapFault {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	inFault := false
	fault := &soapFault{}
	field := ""
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fault":
				inFault = true
			case "faultcode", "faultstring":
				field = t.Name.Local
			}
		case xml.EndElement:
			if t.Name.Local == "Fault" && inFault {
				return fault
			}
			field = ""
		case xml.CharData:
			if !inFault {
				continue
			}
			switch field {
			case "faultcode":
				fault.Code = strings.TrimSpace(string(t))
			case "faultstring":
				fault.String = strings.TrimSpace(string(t))
			}
		}
	}
}

// extractReturnValue pulls the text of the first *Return element out of a
// SOAP response body.
func extractReturnValue(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	inReturn := false
	var value strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.HasSuffix(t.Name.Local, "Return") || t.Name.Local == "result" {
				inReturn = true
			}
		case xml.EndElement:
			if inReturn {
				return value.String(), nil
			}
		case xml.CharData:
			if inReturn {
				value.Write(t)
			}
		}
	}
	return "", fmt.Errorf("%w: no return value in response", integration.ErrInvalidResponse)
}

// decodeResult normalizes the inconsistent encodings PowerBody responses
// arrive in: plain JSON, or JSON wrapped in base64.
func decodeResult(value string) []byte {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil && json.Valid(decoded) {
		return decoded
	}
	return []byte(trimmed)
}
