// Package identity checks OAuth access tokens against the issuing provider's profile endpoint.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	ProviderKakao  = "kakao"
	ProviderNaver  = "naver"
	ProviderGoogle = "google"
)

type FailureReason string

const (
	FailureUnsupportedProvider FailureReason = "unsupported_provider"
	FailureTransport           FailureReason = "transport"
	FailureRejected            FailureReason = "rejected"
	FailureMalformed           FailureReason = "malformed"
)

// Result is either a decoded profile or a tagged failure. Verify never returns anything else.
type Result struct {
	Provider string
	Profile  Profile
	Failure  FailureReason
	Status   int
	Detail   string
}

func (r Result) OK() bool {
	return r.Failure == ""
}

// Endpoints holds each provider's profile URL. Google's token travels as a query parameter too.
type Endpoints struct {
	Kakao  string
	Naver  string
	Google string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Kakao:  "https://kapi.kakao.com/v2/user/me",
		Naver:  "https://openapi.naver.com/v1/nid/me",
		Google: "https://www.googleapis.com/oauth2/v3/tokeninfo",
	}
}

type Verifier struct {
	endpoints  Endpoints
	httpClient *http.Client
	timeout    time.Duration
}

func NewVerifier(endpoints Endpoints, httpClient *http.Client) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{endpoints: endpoints, httpClient: httpClient, timeout: 10 * time.Second}
}

func Supported(provider string) bool {
	switch provider {
	case ProviderKakao, ProviderNaver, ProviderGoogle:
		return true
	default:
		return false
	}
}

func (v *Verifier) endpoint(provider, token string) (string, bool) {
	switch provider {
	case ProviderKakao:
		return v.endpoints.Kakao, true
	case ProviderNaver:
		return v.endpoints.Naver, true
	case ProviderGoogle:
		return v.endpoints.Google + "?access_token=" + url.QueryEscape(token), true
	default:
		return "", false
	}
}

// Verify forwards token to provider's profile endpoint.
func (v *Verifier) Verify(ctx context.Context, provider, token string) Result {
	provider = strings.ToLower(strings.TrimSpace(provider))
	result := Result{Provider: provider}

	target, ok := v.endpoint(provider, token)
	if !ok {
		result.Failure = FailureUnsupportedProvider
		return result
	}
	if strings.TrimSpace(token) == "" {
		result.Failure = FailureRejected
		result.Detail = "empty token"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Failure = FailureTransport
		result.Detail = err.Error()
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Failure = FailureTransport
		result.Detail = err.Error()
		return result
	}
	defer resp.Body.Close()
	result.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Failure = FailureTransport
		result.Detail = fmt.Sprintf("read body: %v", err)
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Failure = FailureRejected
		result.Detail = fmt.Sprintf("provider answered %d", resp.StatusCode)
		return result
	}

	profile, err := decodeProfile(body)
	if err != nil {
		result.Failure = FailureMalformed
		result.Detail = err.Error()
		return result
	}
	if profile.Subject(provider) == "" {
		result.Failure = FailureMalformed
		result.Detail = "profile carries no subject"
		return result
	}
	result.Profile = profile
	return result
}

// Profile is the provider's JSON document as returned.
type Profile map[string]any

func decodeProfile(body []byte) (Profile, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var profile Profile
	if err := decoder.Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("decode profile: empty document")
	}
	return profile, nil
}

// Subject is the provider-scoped user id.
func (p Profile) Subject(provider string) string {
	switch provider {
	case ProviderKakao:
		return p.str("id")
	case ProviderNaver:
		return p.nested("response").str("id")
	case ProviderGoogle:
		return p.str("sub")
	default:
		return ""
	}
}

func (p Profile) Email(provider string) string {
	switch provider {
	case ProviderKakao:
		return p.nested("kakao_account").str("email")
	case ProviderNaver:
		return p.nested("response").str("email")
	default:
		return p.str("email")
	}
}

// EmailVerified reports whether the provider vouches for Email. Naver carries no such flag.
func (p Profile) EmailVerified(provider string) bool {
	switch provider {
	case ProviderKakao:
		return p.nested("kakao_account").flag("is_email_verified")
	case ProviderGoogle:
		return p.flag("email_verified")
	default:
		return false
	}
}

func (p Profile) Name(provider string) string {
	switch provider {
	case ProviderKakao:
		return p.nested("kakao_account").nested("profile").str("nickname")
	case ProviderNaver:
		return p.nested("response").str("name")
	default:
		return p.str("name")
	}
}

func (p Profile) nested(key string) Profile {
	if value, ok := p[key].(map[string]any); ok {
		return Profile(value)
	}
	return Profile{}
}

func (p Profile) str(key string) string {
	switch value := p[key].(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// flag accepts both JSON booleans and Google's "true" strings.
func (p Profile) flag(key string) bool {
	switch value := p[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(value, "true")
	default:
		return false
	}
}

// Subject is the provider-scoped user id of a successful result.
func (r Result) Subject() string {
	return r.Profile.Subject(r.Provider)
}

func (r Result) Email() string {
	return r.Profile.Email(r.Provider)
}

func (r Result) EmailVerified() bool {
	return r.Profile.EmailVerified(r.Provider)
}
