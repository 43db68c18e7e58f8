package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lenslesscam/lenslessgo/internal/keypath"
)

// Override is one parsed command-line key=value argument.
type Override struct {
	Key   *keypath.Path
	Value any
}

// ParseOverride splits an argument of the form key=value, parses the key as
// a dotted path and the value as a YAML scalar/list/mapping literal. Values
// that fail YAML parsing are kept as literal strings; `null` (and friends)
// yields nil, the disable sentinel.
func ParseOverride(arg string) (*Override, error) {
	eq := strings.Index(arg, "=")
	if eq < 0 {
		return nil, &MalformedOverrideError{Arg: arg, Reason: "expected key=value"}
	}
	if eq == 0 {
		return nil, &MalformedOverrideError{Arg: arg, Reason: "empty key"}
	}

	key, err := keypath.Parse(arg[:eq])
	if err != nil {
		return nil, &MalformedOverrideError{Arg: arg, Reason: err.Error()}
	}

	return &Override{Key: key, Value: parseValueLiteral(arg[eq+1:])}, nil
}

func parseValueLiteral(text string) any {
	if text == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	norm, err := normalizeValue(v, "")
	if err != nil {
		return text
	}
	return norm
}
