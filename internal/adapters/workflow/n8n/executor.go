package n8n

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
	signatureHeader  = "X-Webhook-Signature"
	featureHeader    = "X-Marketwin-Feature"
)

var ErrWorkflowFailed = errors.New("workflow failed")

var webhookPaths = map[domain.Feature]string{
	domain.FeatureAIContent:        "generate-content",
	domain.FeatureSocialPosts:      "multi-platform-post",
	domain.FeatureEmailCampaigns:   "email-campaign",
	domain.FeatureReviewsMonitored: "review-check",
}

// Executor runs metered features by posting them to n8n webhook workflows.
type Executor struct {
	baseURL    string
	httpClient *http.Client
	secret     []byte
	now        func() time.Time
}

var _ ports.FeatureExecutor = (*Executor)(nil)

type Option func(*Executor)

func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithSigningSecret signs every body with HMAC-SHA256 in X-Webhook-Signature.
func WithSigningSecret(secret string) Option {
	return func(e *Executor) {
		e.secret = []byte(secret)
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.httpClient = &http.Client{Timeout: timeout, Transport: e.httpClient.Transport}
		}
	}
}

func NewExecutor(baseURL string, opts ...Option) *Executor {
	e := &Executor{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WebhookURL returns the endpoint that serves feature.
func (e *Executor) WebhookURL(feature domain.Feature) (string, error) {
	path, ok := webhookPaths[feature]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownFeature, feature)
	}
	return e.baseURL + "/" + path, nil
}

func (e *Executor) Execute(ctx context.Context, req ports.FeatureRequest) (ports.FeatureResult, error) {
	if e.baseURL == "" {
		return ports.FeatureResult{}, fmt.Errorf("%w: webhook base url is not configured", ErrWorkflowFailed)
	}

	endpoint, err := e.WebhookURL(req.Feature)
	if err != nil {
		return ports.FeatureResult{}, err
	}

	body, err := json.Marshal(buildBody(req, e.now()))
	if err != nil {
		return ports.FeatureResult{}, fmt.Errorf("encode %s webhook body: %w", req.Feature, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.FeatureResult{}, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "marketwin")
	request.Header.Set(featureHeader, string(req.Feature))
	if len(e.secret) > 0 {
		request.Header.Set(signatureHeader, Sign(body, e.secret))
	}

	response, err := e.httpClient.Do(request)
	if err != nil {
		return ports.FeatureResult{}, fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return ports.FeatureResult{}, fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return ports.FeatureResult{}, fmt.Errorf("%w: %s status %d: %s", ErrWorkflowFailed, webhookPaths[req.Feature], response.StatusCode, strings.TrimSpace(string(raw)))
	}

	return decodeResult(raw)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type platformBody struct {
	Content     string            `json:"content"`
	Hashtags    []string          `json:"hashtags,omitempty"`
	Structured  bool              `json:"structured"`
	Truncated   bool              `json:"truncated"`
	AccessToken string            `json:"accessToken,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

func buildBody(req ports.FeatureRequest, now time.Time) map[string]any {
	body := make(map[string]any, len(req.Input)+4)
	for k, v := range req.Input {
		body[k] = v
	}
	body["userId"] = string(req.AccountID)
	body["timestamp"] = now.UTC().Format(time.RFC3339)

	if len(req.Payloads) == 0 {
		return body
	}

	platforms := make([]string, 0, len(req.Payloads))
	specific := make(map[string]platformBody, len(req.Payloads))
	for _, platform := range domain.Platforms() {
		payload, ok := req.Payloads[platform]
		if !ok {
			continue
		}
		entry := platformBody{
			Content:    payload.Content,
			Hashtags:   payload.Hashtags,
			Structured: payload.Structured,
			Truncated:  payload.Truncated,
		}
		if bundle, ok := req.Credentials[platform]; ok {
			entry.AccessToken = bundle.AccessToken
			entry.Identifiers = bundle.Identifiers
		}
		platforms = append(platforms, string(platform))
		specific[string(platform)] = entry
	}
	body["platforms"] = platforms
	body["platformSpecific"] = specific
	if _, ok := body["mediaUrls"]; !ok {
		body["mediaUrls"] = []string{}
	}

	return body
}

func decodeResult(raw []byte) (ports.FeatureResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ports.FeatureResult{Output: map[string]any{}}, nil
	}

	var output map[string]any
	if err := json.Unmarshal(trimmed, &output); err != nil {
		// n8n answers "Workflow was started" as plain text for async workflows.
		return ports.FeatureResult{Output: map[string]any{"message": string(trimmed)}}, nil
	}

	return ports.FeatureResult{Output: output}, nil
}
