package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/lodeflow/sentinel/pkg/events"
)

// MatchMode selects how a key pattern is resolved against the namespace.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchWildcard MatchMode = "wildcard"
	MatchRegex    MatchMode = "regex"
)

// ParseMatchMode validates a serialized match mode, defaulting to exact.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case MatchExact, "":
		return MatchExact, nil
	case MatchWildcard:
		return MatchWildcard, nil
	case MatchRegex:
		return MatchRegex, nil
	}

	return "", fmt.Errorf("unknown match mode %q", s)
}

// Resolve returns the objects matching one key pattern under the given mode.
// An empty result means the pattern did not resolve; an error means the
// check itself failed and must surface to the caller unretried.
func Resolve(ctx context.Context, store ObjectStore, bucket, pattern string, mode MatchMode) ([]events.ObjectMeta, error) {
	switch mode {
	case MatchExact:
		meta, err := store.Head(ctx, bucket, pattern)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}

			return nil, fmt.Errorf("head %q: %w", pattern, err)
		}

		return []events.ObjectMeta{meta}, nil
	case MatchWildcard:
		listing, err := store.List(ctx, bucket, wildcardPrefix(pattern))
		if err != nil {
			return nil, fmt.Errorf("list for wildcard %q: %w", pattern, err)
		}

		var matched []events.ObjectMeta

		for _, meta := range listing {
			ok, matchErr := path.Match(pattern, meta.Key)
			if matchErr != nil {
				return nil, fmt.Errorf("wildcard %q: %w", pattern, matchErr)
			}

			if ok {
				matched = append(matched, meta)
			}
		}

		return matched, nil
	case MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex %q: %w", pattern, err)
		}

		listing, err := store.List(ctx, bucket, "")
		if err != nil {
			return nil, fmt.Errorf("list for regex %q: %w", pattern, err)
		}

		var matched []events.ObjectMeta

		for _, meta := range listing {
			if re.MatchString(meta.Key) {
				matched = append(matched, meta)
			}
		}

		return matched, nil
	}

	return nil, fmt.Errorf("unknown match mode %q", mode)
}

// wildcardPrefix returns the literal key prefix before the first
// metacharacter, narrowing the listing the wildcard is applied to.
func wildcardPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		return pattern[:i]
	}

	return pattern
}
