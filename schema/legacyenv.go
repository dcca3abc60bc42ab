package schema

import "strings"

// LegacyEnvClassifier decides whether a hook failure was caused by a
// reference to an unavailable legacy execution environment, in which
// case the version is soft-skipped instead of failing the run.
//
// The detection is a message heuristic against a fixed list of
// phrasings and legacy runtime identifiers. It is a known
// approximation: a genuine error whose message happens to mention a
// flagged substring is also soft-skipped. Downstream behavior depends
// on exactly this, so the rules live here as data rather than scattered
// string checks.
type LegacyEnvClassifier interface {
	IsLegacyEnvironmentError(err error) bool
}

// Fixed legacy-environment signatures: "class not found" phrasings and
// the runtime class names legacy per-version actions referenced.
var legacyEnvPatterns = []string{
	"class not found",
	"class does not exist",
	"undefined class",
	"call to undefined method",
	"legacykernel",
	"legacyenvironment",
	"moduleinstallerlegacy",
}

// MessageClassifier is the default LegacyEnvClassifier.
type MessageClassifier struct {
	patterns []string
}

// NewLegacyEnvClassifier creates a classifier with the fixed signature
// list plus any extra patterns (matched case-insensitively).
func NewLegacyEnvClassifier(extra ...string) *MessageClassifier {
	return &MessageClassifier{
		patterns: append(append([]string(nil), legacyEnvPatterns...), extra...),
	}
}

// IsLegacyEnvironmentError reports whether the error message matches a
// known legacy-environment signature.
func (c *MessageClassifier) IsLegacyEnvironmentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
