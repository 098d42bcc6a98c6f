package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/marketwin/internal/domain"
)

const (
	maxTokenResponseBytes = 1 << 20
	callbackPath          = "/oauth/callback"
)

var (
	ErrStateMismatch   = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout = errors.New("timed out waiting for oauth callback")
	ErrMissingState    = errors.New("expected state is required")
	ErrInvalidGrant    = errors.New("oauth grant is invalid or expired")
)

// identifierAliases maps a credential identifier to the token response field
// a platform reports it under, when the names differ.
var identifierAliases = map[domain.Platform]map[string]string{
	domain.PlatformTikTok:   {"user_id": "open_id"},
	domain.PlatformLinkedIn: {"profile_id": "sub"},
}

// Provider is the OAuth application registered with one platform.
type Provider struct {
	Platform     domain.Platform
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (p Provider) validate() error {
	if _, err := domain.SpecFor(p.Platform); err != nil {
		return err
	}
	if p.ClientID == "" {
		return fmt.Errorf("%s: client id is required", p.Platform)
	}
	if err := checkHTTPURL("auth url", p.AuthURL); err != nil {
		return fmt.Errorf("%s: %w", p.Platform, err)
	}
	if err := checkHTTPURL("token url", p.TokenURL); err != nil {
		return fmt.Errorf("%s: %w", p.Platform, err)
	}
	return nil
}

func checkHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", name)
	}
	return nil
}

// AuthorizationURL builds the consent page address for an authorization code
// grant with PKCE.
func (p Provider) AuthorizationURL(redirectURI, state, challenge string) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	if redirectURI == "" || state == "" || challenge == "" {
		return "", errors.New("redirect uri, state and code challenge are required")
	}

	parsed, _ := url.Parse(p.AuthURL)
	q := parsed.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", redirectURI)
	if len(p.Scopes) > 0 {
		q.Set("scope", strings.Join(p.Scopes, " "))
	}
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", PKCEChallengeMethodS256)
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

// CallbackServer receives the authorization code on a loopback address.
type CallbackServer struct {
	expectedState string
	listener      net.Listener
	server        *http.Server
	resultCh      chan callbackResult
	resultOnce    sync.Once
	closeOnce     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

func StartCallbackServer(listenAddr string, expectedState string) (*CallbackServer, error) {
	if expectedState == "" {
		return nil, ErrMissingState
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		expectedState: expectedState,
		listener:      listener,
		resultCh:      make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, cb.handleCallback)
	cb.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := cb.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.deliver(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) RedirectURI() string {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://127.0.0.1:%d%s", tcpAddr.Port, callbackPath)
	}
	return "http://127.0.0.1" + callbackPath
}

// Wait blocks until the callback arrives or ctx ends, then closes the server.
func (c *CallbackServer) Wait(ctx context.Context) (string, error) {
	defer c.Close()

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrCallbackTimeout
		}
		return "", ctx.Err()
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("state") != c.expectedState {
		c.deliver(callbackResult{err: ErrStateMismatch})
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthError := query.Get("error"); oauthError != "" {
		if description := query.Get("error_description"); description != "" {
			oauthError += ": " + description
		}
		c.deliver(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "authorization was not granted", http.StatusBadRequest)
		return
	}
	code := query.Get("code")
	if code == "" {
		c.deliver(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.deliver(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Platform connected. You can close this window."))
}

func (c *CallbackServer) deliver(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}

// Exchange trades an authorization code for the platform's credential bundle.
func Exchange(ctx context.Context, client *http.Client, p Provider, code, verifier, redirectURI string, now time.Time) (domain.CredentialBundle, error) {
	if err := p.validate(); err != nil {
		return domain.CredentialBundle{}, err
	}
	if code == "" || verifier == "" {
		return domain.CredentialBundle{}, errors.New("authorization code and code verifier are required")
	}

	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)
	values.Set("redirect_uri", redirectURI)
	values.Set("code_verifier", verifier)

	return requestToken(ctx, client, p, values, now)
}

// Refresh renews an expiring bundle. Identifiers the token endpoint does not
// repeat are carried over from previous.
func Refresh(ctx context.Context, client *http.Client, p Provider, previous domain.CredentialBundle, now time.Time) (domain.CredentialBundle, error) {
	if err := p.validate(); err != nil {
		return domain.CredentialBundle{}, err
	}
	if previous.RefreshToken == "" {
		return domain.CredentialBundle{}, fmt.Errorf("%w: no refresh token stored", ErrInvalidGrant)
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", previous.RefreshToken)

	bundle, err := requestToken(ctx, client, p, values, now)
	if err != nil {
		return domain.CredentialBundle{}, err
	}
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = previous.RefreshToken
	}
	for key, value := range previous.Identifiers {
		if bundle.Identifiers[key] == "" {
			bundle.Identifiers[key] = value
		}
	}

	return bundle, nil
}

func requestToken(ctx context.Context, client *http.Client, p Provider, values url.Values, now time.Time) (domain.CredentialBundle, error) {
	if client == nil {
		client = http.DefaultClient
	}

	values.Set("client_id", p.ClientID)
	if p.ClientSecret != "" {
		values.Set("client_secret", p.ClientSecret)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("create token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("perform token request: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBytes))
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("read token response: %w", err)
	}

	fields := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	decodeErr := decoder.Decode(&fields)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		if fields["error"] == "invalid_grant" {
			return domain.CredentialBundle{}, fmt.Errorf("%w: %s", ErrInvalidGrant, stringField(fields, "error_description"))
		}
		return domain.CredentialBundle{}, fmt.Errorf("token endpoint returned status %d", response.StatusCode)
	}
	if decodeErr != nil {
		return domain.CredentialBundle{}, fmt.Errorf("decode token response: %w", decodeErr)
	}

	return bundleFromFields(p.Platform, fields, now)
}

func bundleFromFields(platform domain.Platform, fields map[string]any, now time.Time) (domain.CredentialBundle, error) {
	bundle := domain.CredentialBundle{
		AccessToken:  stringField(fields, "access_token"),
		RefreshToken: stringField(fields, "refresh_token"),
		Identifiers:  map[string]string{},
	}
	if bundle.AccessToken == "" {
		return domain.CredentialBundle{}, errors.New("token response missing access_token")
	}

	if seconds, err := json.Number(stringField(fields, "expires_in")).Int64(); err == nil && seconds > 0 {
		expiry := now.Add(time.Duration(seconds) * time.Second).UTC()
		bundle.Expiry = &expiry
	}

	spec, err := domain.SpecFor(platform)
	if err != nil {
		return domain.CredentialBundle{}, err
	}
	for _, key := range spec.Credentials.Identifiers {
		field := key
		if alias, ok := identifierAliases[platform][key]; ok && stringField(fields, key) == "" {
			field = alias
		}
		if value := stringField(fields, field); value != "" {
			bundle.Identifiers[key] = value
		}
	}

	return bundle, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// LoginRequest drives one browser based authorization.
type LoginRequest struct {
	Provider   Provider
	ListenAddr string
	HTTPClient *http.Client
	Now        func() time.Time
	// Prompt receives the authorization URL to show or open.
	Prompt func(authURL string) error
}

// Login runs the PKCE authorization code flow and returns the exchanged
// bundle. ctx bounds the wait for the browser callback.
func Login(ctx context.Context, req LoginRequest) (domain.CredentialBundle, error) {
	if req.Now == nil {
		req.Now = time.Now
	}

	pkce, err := NewPKCEPair()
	if err != nil {
		return domain.CredentialBundle{}, err
	}
	state, err := NewState()
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	server, err := StartCallbackServer(req.ListenAddr, state)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	redirectURI := server.RedirectURI()
	authURL, err := req.Provider.AuthorizationURL(redirectURI, state, pkce.Challenge)
	if err != nil {
		_ = server.Close()
		return domain.CredentialBundle{}, fmt.Errorf("build authorization url: %w", err)
	}
	if req.Prompt != nil {
		if err := req.Prompt(authURL); err != nil {
			_ = server.Close()
			return domain.CredentialBundle{}, err
		}
	}

	code, err := server.Wait(ctx)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("wait for oauth callback: %w", err)
	}

	bundle, err := Exchange(ctx, req.HTTPClient, req.Provider, code, pkce.Verifier, redirectURI, req.Now())
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("exchange code for tokens: %w", err)
	}

	return bundle, nil
}
