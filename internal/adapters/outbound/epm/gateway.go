package epm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuthMode selects how outbound calls authenticate.
type AuthMode string

const (
	AuthMode_Basic  AuthMode = "basic"
	AuthMode_OAuth2 AuthMode = "oauth2"
)

// Gateway issues calls against the planning REST surface. It never retries:
// transport failures are returned as structured results for the caller to act on.
type Gateway struct {
	baseURL  string
	authMode AuthMode
	username string
	password string
	tokens   domain.TokenSource
	client   *http.Client
	timeout  time.Duration
	logger   *log.Logger
}

// NewGateway creates a gateway over the given base URL and auth settings.
// tokens may be nil when authMode is basic.
func NewGateway(baseURL string, authMode AuthMode, username, password string, tokens domain.TokenSource, client *http.Client, timeout time.Duration, logger *log.Logger) Gateway {
	return Gateway{
		baseURL:  NormalizeBaseURL(baseURL),
		authMode: authMode,
		username: username,
		password: password,
		tokens:   tokens,
		client:   client,
		timeout:  timeout,
		logger:   logger,
	}
}

// NormalizeBaseURL strips trailing slashes and a trailing /epmcloud context
// segment, so pasted service URLs and host-only URLs behave the same.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if strings.HasSuffix(strings.ToLower(u), "/epmcloud") {
		u = u[:len(u)-len("/epmcloud")]
	}
	return strings.TrimRight(u, "/")
}

// Call performs one request against the configured base URL.
func (g Gateway) Call(ctx context.Context, method, path string, params map[string]string, body any) domain.CallResult {
	return g.do(ctx, method, g.baseURL+path, params, body)
}

// do performs one request against an absolute URL and classifies the outcome.
func (g Gateway) do(ctx context.Context, method, rawURL string, params map[string]string, body any) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx, trace.WithAttributes(
		attribute.String("http.method", method),
	))
	defer span.End()

	callCtx := spanCtx
	if _, hasDeadline := callCtx.Deadline(); !hasDeadline && g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, g.timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return networkFailure(rawURL, fmt.Sprintf("encode request body: %v", err))
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(callCtx, strings.ToUpper(method), rawURL, bodyReader)
	if err != nil {
		return networkFailure(rawURL, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	switch g.authMode {
	case AuthMode_OAuth2:
		token, err := g.tokens.Acquire(callCtx)
		if err != nil {
			telemetry.RecordErrorAndStatus(span, err)
			return networkFailure(rawURL, err.Error())
		}
		req.Header.Set("Authorization", "Bearer "+token)
	default:
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return networkFailure(rawURL, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.RecordErrorAndStatus(span, err)
		return networkFailure(rawURL, fmt.Sprintf("read response: %v", err))
	}

	payload := decodePayload(respBody)

	if resp.StatusCode >= 300 {
		return domain.CallResult{
			OK:         false,
			Error:      domain.CallError_Http,
			StatusCode: resp.StatusCode,
			Message:    httpErrorMessage(payload, resp.Status),
			Response:   RedactMap(payload),
			URL:        rawURL,
		}
	}

	return domain.CallResult{
		OK:         true,
		StatusCode: resp.StatusCode,
		Response:   RedactMap(payload),
		URL:        rawURL,
	}
}

func networkFailure(rawURL, message string) domain.CallResult {
	return domain.CallResult{
		OK:      false,
		Error:   domain.CallError_Network,
		Message: message,
		URL:     rawURL,
	}
}

// decodePayload parses a JSON object body, falling back to a raw_text wrapper
// for empty or non-JSON responses.
func decodePayload(body []byte) map[string]any {
	if len(body) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err == nil {
		return m
	}
	var anyVal any
	if err := json.Unmarshal(body, &anyVal); err == nil {
		return map[string]any{"items": anyVal}
	}
	return map[string]any{"raw_text": string(body)}
}

// httpErrorMessage extracts a human message from an error payload, trying the
// service's message fields before falling back to the HTTP status line.
func httpErrorMessage(payload map[string]any, statusLine string) string {
	for _, key := range []string{"message", "details"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return statusLine
}

// InitPlanningGateway validates the EPM configuration surface and registers the
// gateway (plus token source when in oauth2 mode) in the dependency container.
type InitPlanningGateway struct {
	Logger       *log.Logger                `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`

	ServiceURL  string `config:"EPM_SERVICE_URL"`
	AuthMode    string `config:"EPM_AUTH_MODE" default:"basic"`
	Username    string `config:"EPM_USERNAME" default:""`
	Password    string `config:"EPM_PASSWORD" default:""`
	TokenURL    string `config:"EPM_IDCS_TOKEN_URL" default:""`
	ClientID    string `config:"EPM_OAUTH_CLIENT_ID" default:""`
	ClientKey   string `config:"EPM_OAUTH_CLIENT_SECRET" default:""`
	Scope       string `config:"EPM_OAUTH_SCOPE" default:""`
	VerifySSL   bool   `config:"EPM_VERIFY_SSL" default:"true"`
	CallTimeout string `config:"EPM_CALL_TIMEOUT" default:"60s"`
}

// Initialize builds the outbound client and registers the PlanningGateway.
func (i InitPlanningGateway) Initialize(ctx context.Context) (context.Context, error) {
	mode := AuthMode(strings.ToLower(strings.TrimSpace(i.AuthMode)))
	if mode != AuthMode_Basic && mode != AuthMode_OAuth2 {
		return ctx, domain.NewConfigurationErr("EPM_AUTH_MODE must be 'basic' or 'oauth2'")
	}

	var missing []string
	if strings.TrimSpace(i.ServiceURL) == "" {
		missing = append(missing, "EPM_SERVICE_URL")
	}
	if mode == AuthMode_Basic {
		if i.Username == "" {
			missing = append(missing, "EPM_USERNAME")
		}
		if i.Password == "" {
			missing = append(missing, "EPM_PASSWORD")
		}
	} else {
		if i.TokenURL == "" {
			missing = append(missing, "EPM_IDCS_TOKEN_URL")
		}
		if i.ClientID == "" {
			missing = append(missing, "EPM_OAUTH_CLIENT_ID")
		}
		if i.ClientKey == "" {
			missing = append(missing, "EPM_OAUTH_CLIENT_SECRET")
		}
	}
	if len(missing) > 0 {
		return ctx, domain.NewConfigurationErr("missing required settings: " + strings.Join(missing, ", "))
	}

	timeout, err := time.ParseDuration(i.CallTimeout)
	if err != nil {
		return ctx, domain.NewConfigurationErr("EPM_CALL_TIMEOUT is not a duration: " + err.Error())
	}

	transport := http.DefaultTransport
	if !i.VerifySSL {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
	}
	client := &http.Client{
		Transport: otelhttp.NewTransport(transport, otelhttp.WithSpanNameFormatter(telemetry.SpanNameFormatter)),
	}

	var tokens domain.TokenSource
	if mode == AuthMode_OAuth2 {
		issuer := NewIDCSTokenIssuer(i.TokenURL, i.ClientID, i.ClientKey, i.Scope, client)
		tokens = NewTokenCache(i.TimeProvider, issuer)
		depend.Register[domain.TokenSource](tokens)
	}

	depend.Register[domain.PlanningGateway](NewGateway(
		i.ServiceURL, mode, i.Username, i.Password, tokens, client, timeout, i.Logger,
	))
	return ctx, nil
}
