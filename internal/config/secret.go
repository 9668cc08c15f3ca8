package config

import (
	"fmt"
	"io"
	"net/url"
)

const redacted = "[REDACTED]"

// Secret holds a credential such as a webhook URL. Every fmt verb and the
// YAML encoder print it as [REDACTED]; Reveal is the only way to the value.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Format implements fmt.Formatter so %v, %s, %q and %#v all redact.
func (s Secret) Format(f fmt.State, verb rune) {
	switch verb {
	case 'q':
		fmt.Fprintf(f, "%q", s.mask())
	case 'v':
		if f.Flag('#') {
			fmt.Fprintf(f, "%q", s.mask())
			return
		}
		_, _ = io.WriteString(f, s.mask())
	default:
		_, _ = io.WriteString(f, s.mask())
	}
}

func (s Secret) String() string { return s.mask() }

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.mask(), nil
}

func (s Secret) Reveal() string {
	return string(s)
}

// Host returns the host part of a URL secret, which is safe to log.
func (s Secret) Host() string {
	u, err := url.Parse(string(s))
	if err != nil {
		return ""
	}
	return u.Host
}
