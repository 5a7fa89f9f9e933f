package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"

	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
)

const (
	googleIndexingScope  = "https://www.googleapis.com/auth/indexing"
	defaultPublishURL    = "https://indexing.googleapis.com/v3/urlNotifications:publish"
	defaultTokenURL      = "https://oauth2.googleapis.com/token"
	defaultGoogleLimit   = 200
	googleAuthHint       = "verify domain ownership in Search Console and grant the service account owner access"
	tokenExpirySlack     = 60 * time.Second
	serviceAccountExpiry = time.Hour
)

// GoogleConfig holds service-account credentials and limits for the bulk
// per-URL indexing API. ClientEmail/PrivateKey empty means the adapter is
// disabled for the run.
type GoogleConfig struct {
	ClientEmail string
	PrivateKey  string
	PublishURL  string
	TokenURL    string
	DailyLimit  int
	BatchSize   int
	Timeout     time.Duration
}

// GoogleCredentials is the subset of a service-account JSON key file the
// adapter needs.
type GoogleCredentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// LoadGoogleCredentials reads a service-account key file. A missing file is
// reported so the caller can disable the adapter instead of crashing.
func LoadGoogleCredentials(path string) (*GoogleCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("credentials file missing client_email or private_key")
	}
	return &creds, nil
}

// GoogleAdapter submits one URL per call to the Google Indexing API,
// authenticated by a service-account JWT exchanged for a bearer token.
type GoogleAdapter struct {
	config GoogleConfig
	client *fasthttp.Client
	log    *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewGoogleAdapter(config GoogleConfig) *GoogleAdapter {
	if config.PublishURL == "" {
		config.PublishURL = defaultPublishURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.DailyLimit <= 0 {
		config.DailyLimit = defaultGoogleLimit
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	// Keys pasted through env vars arrive with literal \n sequences.
	config.PrivateKey = strings.ReplaceAll(config.PrivateKey, `\n`, "\n")

	return &GoogleAdapter{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		log: logger.GetLogger().WithField("component", "google_adapter"),
	}
}

func (g *GoogleAdapter) Service() ledger.Service { return ledger.ServiceGoogle }

func (g *GoogleAdapter) Enabled() bool {
	return g.config.ClientEmail != "" && g.config.PrivateKey != ""
}

func (g *GoogleAdapter) BatchSize() int { return g.config.BatchSize }

func (g *GoogleAdapter) DailyLimit() int { return g.config.DailyLimit }

type urlNotification struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Submit publishes URL_UPDATED notifications, one call per URL. Responses
// are per-call, so a failure only affects that URL.
func (g *GoogleAdapter) Submit(ctx context.Context, urls []string) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.publish(token, u); err != nil {
			return err
		}
		g.log.WithField("url", u).Debug("URL notification published")
	}
	return nil
}

func (g *GoogleAdapter) publish(token, pageURL string) error {
	body, err := json.Marshal(urlNotification{URL: pageURL, Type: "URL_UPDATED"})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.config.PublishURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	if err := g.client.DoTimeout(req, resp, g.config.Timeout); err != nil {
		return fmt.Errorf("%s: request failed for %s: %w", g.Service(), pageURL, err)
	}

	return classifyStatus(g.Service(), resp.StatusCode(), string(resp.Body()), googleAuthHint)
}

// token returns a cached bearer token, minting a fresh one via the signed
// JWT grant when the cached token is close to expiry.
func (g *GoogleAdapter) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry.Add(-tokenExpirySlack)) {
		return g.accessToken, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	assertion, err := g.signAssertion()
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req.SetRequestURI(g.config.TokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())

	if err := g.client.DoTimeout(req, resp, g.config.Timeout); err != nil {
		return "", fmt.Errorf("%s: token request failed: %w", g.Service(), err)
	}
	if err := classifyStatus(g.Service(), resp.StatusCode(), string(resp.Body()), googleAuthHint); err != nil {
		return "", err
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &tokenResp); err != nil {
		return "", fmt.Errorf("%s: failed to decode token response: %w", g.Service(), err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%s: token response contained no access_token", g.Service())
	}

	g.accessToken = tokenResp.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	g.log.WithField("expires_in", tokenResp.ExpiresIn).Debug("Minted new access token")
	return g.accessToken, nil
}

func (g *GoogleAdapter) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(g.config.PrivateKey))
	if err != nil {
		return "", &AuthorizationError{
			Service: g.Service(),
			Hint:    "service account private key is not valid PEM",
			Err:     err,
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   g.config.ClientEmail,
		"scope": googleIndexingScope,
		"aud":   g.config.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(serviceAccountExpiry).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign assertion: %w", g.Service(), err)
	}
	return assertion, nil
}
