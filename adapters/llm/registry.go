package llm

import (
	"fmt"

	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/secret"
)

// NewClient dispatches on model.Provider to construct the concrete adapter
// (§2 domain stack: Anthropic, OpenAI, AWS Bedrock), using auth resolved
// for the model's declared AuthProvider.
func NewClient(model *resolve.Model, auth *secret.Provider) (Client, error) {
	if model == nil {
		return nil, fmt.Errorf("llm: model is required")
	}
	maxTokens := configInt(model.Config, "max_tokens")

	var client Client
	var err error
	switch model.Provider {
	case "anthropic":
		if auth == nil || auth.APIKey == "" {
			return nil, fmt.Errorf("llm: model %q requires an api-key auth provider", model.ID)
		}
		client, err = NewAnthropicClient(auth.APIKey, model.ModelID, maxTokens)
	case "openai":
		if auth == nil || auth.APIKey == "" {
			return nil, fmt.Errorf("llm: model %q requires an api-key auth provider", model.ID)
		}
		client, err = NewOpenAIClient(auth.APIKey, model.ModelID, maxTokens)
	case "bedrock":
		if auth == nil {
			return nil, fmt.Errorf("llm: model %q requires a cloud auth provider", model.ID)
		}
		client, err = NewBedrockClient(auth.Cloud, model.ModelID, maxTokens)
	default:
		return nil, fmt.Errorf("llm: model %q: unsupported provider %q", model.ID, model.Provider)
	}
	if err != nil {
		return nil, err
	}

	// rate_limit_tpm (and optional rate_limit_max_tpm) opt a model into the
	// adaptive tokens-per-minute limiter (§2 domain stack); a model with
	// neither set runs unthrottled, as before.
	if tpm := configFloat(model.Config, "rate_limit_tpm"); tpm > 0 {
		maxTPM := configFloat(model.Config, "rate_limit_max_tpm")
		client = NewAdaptiveRateLimiter(tpm, maxTPM).Wrap(client)
	}
	return client, nil
}

// configInt reads an integer-valued config entry, accepting both the int
// the YAML loader (yaml.v3) decodes integer literals as, and float64 in
// case the value arrived through a JSON-sourced config map.
func configInt(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// configFloat is configInt's float-valued counterpart, for config entries
// like rate_limit_tpm that are naturally fractional.
func configFloat(cfg map[string]any, key string) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
