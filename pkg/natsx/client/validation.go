package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	maxSubjectLength = 255
	maxNameLength    = 64
	maxKeyLength     = 256
)

var (
	tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	keyPattern   = regexp.MustCompile(`^[A-Za-z0-9_=/-]+(\.[A-Za-z0-9_=/-]+)*$`)
)

// ValidateNATSURL accepts nats, tls, ws and wss URLs with a host.
func ValidateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidURL, u.Scheme, raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return nil
}

// ValidateSubject checks a subject, allowing * and a trailing > when
// wildcards is true.
func ValidateSubject(subject string, wildcards bool) error {
	if subject == "" || len(subject) > maxSubjectLength {
		return fmt.Errorf("%w: length must be 1..%d", ErrInvalidSubject, maxSubjectLength)
	}
	tokens := strings.Split(subject, ".")
	for i, tok := range tokens {
		switch {
		case wildcards && tok == "*":
		case wildcards && tok == ">" && i == len(tokens)-1:
		case !tokenPattern.MatchString(tok):
			return fmt.Errorf("%w: bad token %q in %q", ErrInvalidSubject, tok, subject)
		}
	}
	return nil
}

// ValidateName checks a stream, consumer or bucket name.
func ValidateName(name string) error {
	if len(name) > maxNameLength || !tokenPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateKey checks a KV key.
func ValidateKey(key string) error {
	if len(key) > maxKeyLength || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
