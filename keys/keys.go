package keys

import "strings"

// Provider identifies which external API a credential belongs to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBrave     Provider = "brave"
	ProviderUnknown   Provider = "unknown"
)

// KeyType distinguishes organization-wide admin keys from scoped project keys.
type KeyType string

const (
	TypeAdmin   KeyType = "admin"
	TypeProject KeyType = "project"
)

// Classify maps a raw credential string to its provider and privilege tier
// based on the key's structural prefix. It never fails: unrecognized input
// degrades to ProviderUnknown so the key can still be stored and reclassified
// later. First matching rule wins, matching is case-sensitive.
func Classify(raw string) (Provider, KeyType) {
	switch {
	case strings.HasPrefix(raw, "sk-admin-"):
		return ProviderOpenAI, TypeAdmin
	case strings.HasPrefix(raw, "sk-proj-"):
		return ProviderOpenAI, TypeProject
	case strings.HasPrefix(raw, "sk-ant-"):
		// Anthropic has no admin tier.
		return ProviderAnthropic, TypeProject
	case strings.HasPrefix(raw, "sk-"):
		// Legacy OpenAI format.
		return ProviderOpenAI, TypeProject
	case strings.HasPrefix(raw, "BSA"):
		return ProviderBrave, TypeProject
	default:
		return ProviderUnknown, TypeProject
	}
}

const (
	maskPrefixLen = 12
	maskSuffixLen = 6
	maskMarker    = "..."
	maskRedacted  = "***"
)

// Mask derives the display-safe form of a credential: a fixed-length prefix
// (enough to show provider and type), a fixed-width marker, and a fixed-length
// suffix (enough to tell keys apart). Secrets too short to keep both plus a
// hidden interior are replaced entirely, never partially leaked.
func Mask(raw string) string {
	if len(raw) <= maskPrefixLen+maskSuffixLen+2 {
		return maskRedacted
	}
	return raw[:maskPrefixLen] + maskMarker + raw[len(raw)-maskSuffixLen:]
}
