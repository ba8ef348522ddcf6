package secret

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/bazaarvoice/qtype/dsl"
)

// Provider is the resolved runtime form of a dsl.AuthProvider: an
// API-key/OAuth2 provider gets its secret resolved in place; a cloud
// provider gets a materialized aws.Config session (§4.J).
type Provider struct {
	ID     string
	Kind   dsl.AuthProviderKind
	APIKey string
	Cloud  aws.Config
}

// CloudSessionFactory acquires an aws.Config session for a cloud
// AuthProvider (§4.J: "For cloud providers, the runtime caches sessions
// keyed by provider id and credential fingerprint, refreshes when
// temporary credentials expire, and supports role assumption"). It is a
// scoped resource: callers must not retain Provider.Cloud beyond the
// lifetime of the run that acquired it, since the underlying credentials
// may rotate.
type CloudSessionFactory struct {
	mu       sync.Mutex
	sessions map[string]aws.Config
}

// NewCloudSessionFactory constructs an empty, ready-to-use factory.
func NewCloudSessionFactory() *CloudSessionFactory {
	return &CloudSessionFactory{sessions: map[string]aws.Config{}}
}

// Acquire returns a cached aws.Config for (providerID, region, roleARN) or
// builds a new one. Credential refresh for expiring temporary credentials
// is handled transparently by the SDK's credential cache, which
// aws.Config's CredentialsCacheOptions already wraps; role assumption
// (base credentials -> STS -> temporary session) is realized via
// stscreds.NewAssumeRoleProvider.
func (f *CloudSessionFactory) Acquire(ctx context.Context, providerID, region, roleARN string) (aws.Config, error) {
	key := fingerprint(providerID, region, roleARN)

	f.mu.Lock()
	if cached, ok := f.sessions[key]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("secret: load base aws config for provider %q: %w", providerID, err)
	}
	if roleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleARN))
	}

	f.mu.Lock()
	f.sessions[key] = cfg
	f.mu.Unlock()
	return cfg, nil
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
