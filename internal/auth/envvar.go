package auth

// Environment variable kinds recognized by the resolver.
const (
	EnvKindAPIKey      = "API_KEY"
	EnvKindAccessToken = "ACCESS_TOKEN"
)

const envPrefix = "MODELFORGE"

// NormalizeProviderEnv maps a provider name to its environment variable
// segment: uppercase with every non-alphanumeric rune collapsed to an
// underscore. Idempotent and total over any non-empty string.
func NormalizeProviderEnv(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// EnvVar returns the environment variable consulted for a provider and
// credential kind, e.g. MODELFORGE_GITHUB_COPILOT_API_KEY.
func EnvVar(provider, kind string) string {
	return envPrefix + "_" + NormalizeProviderEnv(provider) + "_" + kind
}
