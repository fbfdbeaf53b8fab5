package chain

import (
	"net/url"
	"strings"
)

const (
	redacted        = "***REDACTED***"
	redactedSegment = "REDACTED"

	// Path segments at least this long that mix letters and digits are
	// treated as API keys, e.g. /v3/<key> or /v2/<key>.
	minKeySegment = 16
)

var redactParams = map[string]struct{}{
	"apikey":       {},
	"api_key":      {},
	"key":          {},
	"token":        {},
	"access_token": {},
	"secret":       {},
	"password":     {},
}

// RedactURL masks credentials in an endpoint URL before it is logged: the
// userinfo password, key-like path segments and query parameters that
// commonly carry API keys. Unparseable input is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}

	if segments := strings.Split(u.Path, "/"); len(segments) > 1 {
		masked := false
		for i, seg := range segments {
			if looksLikeKey(seg) {
				segments[i] = redactedSegment
				masked = true
			}
		}
		if masked {
			u.Path = strings.Join(segments, "/")
			u.RawPath = ""
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if _, ok := redactParams[strings.ToLower(k)]; ok {
				q.Set(k, redacted)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func looksLikeKey(seg string) bool {
	if len(seg) < minKeySegment {
		return false
	}
	var letters, digits bool
	for _, r := range seg {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters = true
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return letters && digits
}

// redactedError masks an endpoint URL quoted inside a wrapped error, such as
// the Post "https://..." text of an RPC transport failure.
type redactedError struct {
	err         error
	raw, masked string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.raw, e.masked)
}

func (e *redactedError) Unwrap() error { return e.err }

// RedactError returns err with every occurrence of rawURL replaced by its
// redacted form. errors.Is and errors.As still see the original error.
func RedactError(err error, rawURL string) error {
	if err == nil {
		return nil
	}
	masked := RedactURL(rawURL)
	if masked == rawURL {
		return err
	}
	return &redactedError{err: err, raw: rawURL, masked: masked}
}
