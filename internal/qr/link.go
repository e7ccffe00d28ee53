package qr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrEmptyBase = errors.New("base url is empty")

// BuildLink merges params into the query of base. A param that already
// exists in base is replaced; scheme, host, path and fragment are kept. A
// base query that does not parse is an error rather than silently dropped.
func BuildLink(base string, params map[string]string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrEmptyBase
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("parse base query %q: %w", u.RawQuery, err)
	}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
