// Package inputparse classifies a raw input string (a URL, a DOI, a
// free-text bibliographic reference, or a BibTeX entry) before it is
// handed to the queue's enqueue operation. It performs no I/O.
package inputparse

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// InputType mirrors resolver.InputType's classification, duplicated here
// (rather than imported) so this package has no dependency on resolver,
// keeping it a pure leaf the caller can use before any core component
// exists.
type InputType int

const (
	InputURL InputType = iota
	InputDOI
	InputReference
	InputBibTeX
)

func (t InputType) String() string {
	switch t {
	case InputURL:
		return "direct_url"
	case InputDOI:
		return "doi"
	case InputBibTeX:
		return "bibtex"
	default:
		return "reference"
	}
}

// ErrEmptyInput is returned for whitespace-only input; callers should
// count these toward the "skipped" bucket rather than enqueueing them.
var ErrEmptyInput = errors.New("inputparse: empty input")

var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Classify determines the InputType of a raw candidate string.
func Classify(raw string) (InputType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrEmptyInput
	}

	if strings.HasPrefix(trimmed, "@") && strings.Contains(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return InputBibTeX, nil
	}

	doiCandidate := trimmed
	doiCandidate = strings.TrimPrefix(doiCandidate, "doi:")
	doiCandidate = strings.TrimPrefix(doiCandidate, "https://doi.org/")
	doiCandidate = strings.TrimPrefix(doiCandidate, "http://doi.org/")
	if doiPattern.MatchString(doiCandidate) {
		return InputDOI, nil
	}

	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return InputURL, nil
	}

	return InputReference, nil
}

// NormalizeDOI strips any doi: or doi.org prefix, returning the bare
// "10.<registrant>/<suffix>" form.
func NormalizeDOI(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "doi:")
	trimmed = strings.TrimPrefix(trimmed, "https://doi.org/")
	trimmed = strings.TrimPrefix(trimmed, "http://doi.org/")
	return trimmed
}
