package clawbox

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Providers the setup flow knows how to map onto the runtime's settings
// layout. Unknown providers are accepted with a generic mapping so new
// runtime releases don't need a clawbox release to be usable.
var knownProviders = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// ConfigureProvider writes the provider selection and credentials into the
// runtime's settings.json, preserving every key the patch does not touch.
// The model is optional; an empty value leaves the runtime's default alone.
func ConfigureProvider(config *Config, provider, apiKey, model string) error {
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}

	keyName, ok := knownProviders[provider]
	if !ok {
		keyName = "API_KEY"
		zlog.Warn("unknown provider, using generic key name",
			zap.String("provider", provider))
	}

	patch := map[string]any{
		"provider": provider,
		"env": map[string]any{
			keyName: apiKey,
		},
	}
	if model != "" {
		patch["model"] = model
	}

	path := SettingsPath(config)
	if err := UpdateSettings(path, patch); err != nil {
		return err
	}

	zlog.Info("configured provider",
		zap.String("provider", provider),
		zap.String("path", path))
	return nil
}

// KnownProviders lists the providers the setup flow has first-class
// knowledge of, for help text.
func KnownProviders() []string {
	names := make([]string, 0, len(knownProviders))
	for name := range knownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
