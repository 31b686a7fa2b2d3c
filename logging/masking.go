package logging

import (
	"regexp"
	"strings"
)

// CredentialMasker redacts venue credentials and signing material that can
// leak into a log line: REST API keys, HMAC secrets, GDAX passphrases,
// Binance listen keys, and bearer/JWT tokens used by a private WebSocket
// subscription. Unlike a generic PII scrubber, the pattern set here is
// scoped to what actually flows through this client -- there is no card
// or SSN data anywhere in the order/cancel/stream path.
type CredentialMasker struct {
	patterns map[string]*regexp.Regexp
}

// NewCredentialMasker builds a masker with the default venue-credential
// pattern set.
func NewCredentialMasker() *CredentialMasker {
	return &CredentialMasker{
		patterns: map[string]*regexp.Regexp{
			"api_key":     regexp.MustCompile(`(?i)(api[_-]?key|cb-access-key)[\s:="']+([a-zA-Z0-9_\-]{16,})`),
			"hmac_secret": regexp.MustCompile(`(?i)(secret|signature|cb-access-sign)[\s:="']+([a-zA-Z0-9_\-+/=]{16,})`),
			"passphrase":  regexp.MustCompile(`(?i)(passphrase|cb-access-passphrase)[\s:="']+([^\s"']+)`),
			"listen_key":  regexp.MustCompile(`(?i)listen[_-]?key[\s:="']+([a-zA-Z0-9]{20,})`),
			"basic_auth":  regexp.MustCompile(`(?i)Basic\s+([a-zA-Z0-9+/=]{16,})`),
			"bearer":      regexp.MustCompile(`(?i)Bearer\s+([a-zA-Z0-9_\-\.]{20,})`),
			"jwt":         regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
		},
	}
}

// Mask redacts any credential pattern found in input, leaving the rest of
// the message (order ids, prices, venue messages) untouched.
func (m *CredentialMasker) Mask(input string) string {
	result := input

	result = m.patterns["api_key"].ReplaceAllString(result, "$1=[REDACTED]")
	result = m.patterns["hmac_secret"].ReplaceAllString(result, "$1=[REDACTED]")
	result = m.patterns["passphrase"].ReplaceAllString(result, "$1=[REDACTED]")
	result = m.patterns["listen_key"].ReplaceAllString(result, "listen_key=[REDACTED]")
	result = m.patterns["basic_auth"].ReplaceAllString(result, "Basic [REDACTED]")
	result = m.patterns["bearer"].ReplaceAllString(result, "Bearer [REDACTED]")
	result = m.patterns["jwt"].ReplaceAllString(result, "[JWT_REDACTED]")

	return result
}

// credentialKeys lists the map/JSON keys MaskMap and MaskJSON treat as
// carrying signing material rather than order data.
var credentialKeys = map[string]bool{
	"secret":            true,
	"api_key":           true,
	"apikey":            true,
	"apiKey":            true,
	"secret_key":        true,
	"secretKey":         true,
	"passphrase":        true,
	"listen_key":        true,
	"listenKey":         true,
	"signature":         true,
	"cb-access-key":     true,
	"cb-access-sign":    true,
	"cb-access-passphrase": true,
	"authorization":     true,
}

// MaskJSON redacts credential-shaped key/value pairs in a raw JSON string,
// used as a last line of defense over a REST request/response body before
// it is attached to a log entry or Sentry event.
func (m *CredentialMasker) MaskJSON(input string) string {
	result := m.Mask(input)

	for key := range credentialKeys {
		pattern := regexp.MustCompile(`(?i)"` + key + `"\s*:\s*"[^"]*"`)
		result = pattern.ReplaceAllString(result, `"`+key+`":"[REDACTED]"`)
	}

	return result
}

// MaskMap redacts credential-shaped keys in a structured field map, recursing
// into nested maps (a venue error body decoded into Extra, for instance).
func (m *CredentialMasker) MaskMap(input map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(input))

	for key, value := range input {
		if credentialKeys[key] || credentialKeys[strings.ToLower(key)] {
			result[key] = "[REDACTED]"
			continue
		}
		switch v := value.(type) {
		case map[string]interface{}:
			result[key] = m.MaskMap(v)
		case string:
			result[key] = m.Mask(v)
		default:
			result[key] = value
		}
	}

	return result
}

var globalMasker = NewCredentialMasker()

// MaskSensitiveData redacts credential patterns using the package-wide masker.
func MaskSensitiveData(input string) string {
	return globalMasker.Mask(input)
}

// MaskSensitiveJSON redacts credential-shaped JSON fields using the
// package-wide masker.
func MaskSensitiveJSON(input string) string {
	return globalMasker.MaskJSON(input)
}

// MaskSensitiveMap redacts credential-shaped map entries using the
// package-wide masker.
func MaskSensitiveMap(input map[string]interface{}) map[string]interface{} {
	return globalMasker.MaskMap(input)
}
