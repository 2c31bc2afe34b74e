package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"golang.org/x/sync/singleflight"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/crypto"
)

const (
	// TokenValidity is how long ElastiCache accepts an IAM auth token.
	TokenValidity = 15 * time.Minute

	signingService = "elasticache"
	connectAction  = "connect"
)

// emptyPayloadHash is the SigV4 payload hash of the empty GET body.
var emptyPayloadHash = crypto.Sha256Hex("")

// TokenProvider generates ElastiCache IAM authentication tokens and memoizes
// each one for its full validity window. It implements domain.CredentialProvider.
type TokenProvider struct {
	user       string
	cacheName  string
	region     string
	serverless bool

	credentials aws.CredentialsProvider
	signer      *v4.Signer
	logger      domain.Logger
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
}

var _ domain.CredentialProvider = (*TokenProvider)(nil)

// Option customizes a TokenProvider.
type Option func(*TokenProvider)

// WithClock overrides the clock used for signing and expiry.
func WithClock(now func() time.Time) Option {
	return func(p *TokenProvider) { p.now = now }
}

// NewTokenProvider builds a provider for the given cache user and resource.
// It fails when no credentials source is available.
func NewTokenProvider(user, cacheName, region string, serverless bool, credentials aws.CredentialsProvider, logger domain.Logger, opts ...Option) (*TokenProvider, error) {
	if user == "" || cacheName == "" || region == "" {
		return nil, fmt.Errorf("%w: user, cache name and region are required", domain.ErrCredentialsUnavailable)
	}
	if credentials == nil {
		return nil, fmt.Errorf("%w: no AWS credentials source configured", domain.ErrCredentialsUnavailable)
	}
	p := &TokenProvider{
		user:        user,
		cacheName:   cacheName,
		region:      region,
		serverless:  serverless,
		credentials: credentials,
		signer:      v4.NewSigner(),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Credentials returns the cache user and a signed token, generating a new
// token only when the memoized one has expired.
func (p *TokenProvider) Credentials(ctx context.Context) (string, string, error) {
	if token, ok := p.cached(); ok {
		return p.user, token, nil
	}

	v, err, _ := p.group.Do("token", func() (any, error) {
		if token, ok := p.cached(); ok {
			return token, nil
		}
		signedAt := p.now()
		token, err := p.sign(ctx, signedAt)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.token = token
		p.expiresAt = signedAt.Add(TokenValidity)
		p.mu.Unlock()
		p.logger.Debug(ctx, "Generated new ElastiCache IAM token", "cache_name", p.cacheName, "expires_at", p.expiresAt)
		return token, nil
	})
	if err != nil {
		p.logger.Error(ctx, "Failed to generate ElastiCache IAM token", "cache_name", p.cacheName, "error", err)
		return "", "", err
	}
	return p.user, v.(string), nil
}

func (p *TokenProvider) cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" || !p.now().Before(p.expiresAt) {
		return "", false
	}
	return p.token, true
}

// sign builds the presigned connect URL. ElastiCache expects it without the scheme.
func (p *TokenProvider) sign(ctx context.Context, signedAt time.Time) (string, error) {
	creds, err := p.credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialsUnavailable, err)
	}
	if !creds.HasKeys() {
		return "", fmt.Errorf("%w: retrieved credentials have no keys", domain.ErrCredentialsUnavailable)
	}

	query := url.Values{}
	query.Set("Action", connectAction)
	query.Set("User", p.user)
	if p.serverless {
		query.Set("ResourceType", "ServerlessCache")
	}
	query.Set("X-Amz-Expires", strconv.Itoa(int(TokenValidity/time.Second)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, (&url.URL{
		Scheme:   "https",
		Host:     p.cacheName,
		Path:     "/",
		RawQuery: query.Encode(),
	}).String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build connect request: %w", err)
	}

	signedURL, _, err := p.signer.PresignHTTP(ctx, creds, req, emptyPayloadHash, signingService, p.region, signedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to presign connect request: %w", err)
	}
	if !strings.HasPrefix(signedURL, "https://") {
		return "", errors.New("presigned connect URL has unexpected scheme")
	}
	return strings.TrimPrefix(signedURL, "https://"), nil
}
