package secret

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/resolve"
)

// Resolve realizes a resolve.AuthProvider into a runtime Provider (§4.J
// `auth(provider, secret_manager)`): API-key/OAuth2 providers have their
// secret resolved in place; cloud providers acquire a cached session from
// factory.
func Resolve(ctx context.Context, ap *resolve.AuthProvider, manager Manager, factory *CloudSessionFactory) (*Provider, error) {
	if ap == nil {
		return nil, nil
	}
	switch ap.Kind {
	case dsl.AuthAPIKey, dsl.AuthOAuth2:
		if ap.Secret == nil {
			return nil, fmt.Errorf("secret: auth provider %q declares no secret", ap.ID)
		}
		key, err := manager.Resolve(ctx, Reference{SecretName: ap.Secret.SecretName, Key: ap.Secret.Key})
		if err != nil {
			return nil, fmt.Errorf("secret: resolve auth provider %q: %w", ap.ID, err)
		}
		return &Provider{ID: ap.ID, Kind: ap.Kind, APIKey: key}, nil
	case dsl.AuthCloud:
		region, _ := ap.Config["region"].(string)
		roleARN, _ := ap.Config["role_arn"].(string)
		cfg, err := factory.Acquire(ctx, ap.ID, region, roleARN)
		if err != nil {
			return nil, err
		}
		return &Provider{ID: ap.ID, Kind: ap.Kind, Cloud: cfg}, nil
	default:
		return nil, fmt.Errorf("secret: auth provider %q: unknown kind %q", ap.ID, ap.Kind)
	}
}
