package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DomainOfURL extracts the lower-cased hostname from a URL, or "" if
// the URL cannot be parsed.
func DomainOfURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SiteLoginAwareResolver is a General-priority resolver that fetches the
// input URL and detects a login wall, returning NeedsAuth rather than
// silently downloading a login page.
type SiteLoginAwareResolver struct {
	// LoginSignatures are lower-cased substrings that, if found in the
	// fetched body, indicate a login page rather than the real content.
	LoginSignatures []string
}

// NewSiteLoginAwareResolver constructs the resolver with a default set
// of common login-wall signatures, in addition to any caller-supplied
// ones.
func NewSiteLoginAwareResolver(extraSignatures ...string) *SiteLoginAwareResolver {
	signatures := append([]string{"sign in to continue", "please log in", "<form", "csrf_token"}, extraSignatures...)
	return &SiteLoginAwareResolver{LoginSignatures: signatures}
}

func (SiteLoginAwareResolver) Name() string { return "site_login_aware" }

func (SiteLoginAwareResolver) Priority() Priority { return General }

func (SiteLoginAwareResolver) CanHandle(_ string, inputType InputType) bool {
	return inputType == InputURL
}

func (r *SiteLoginAwareResolver) Resolve(ctx context.Context, input string, rctx Context) (ResolveStep, error) {
	if rctx.Fetch == nil {
		return ResolveStep{}, &ResolveError{Kind: ErrResolutionFailed, Message: "site resolver: no fetch function configured"}
	}

	status, _, body, err := rctx.Fetch(ctx, input)
	if err != nil {
		return ResolveStep{}, &ResolveError{Kind: ErrResolutionFailed, Message: fmt.Sprintf("fetch failed: %v", err)}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ResolveStep{
			Kind:    StepNeedsAuth,
			Domain:  DomainOfURL(input),
			Message: "server requires authentication; refresh cookies and retry",
		}, nil
	}

	lowerBody := strings.ToLower(string(body))
	for _, sig := range r.LoginSignatures {
		if strings.Contains(lowerBody, sig) {
			return ResolveStep{
				Kind:    StepNeedsAuth,
				Domain:  DomainOfURL(input),
				Message: "login page detected; refresh cookies and retry",
			}, nil
		}
	}

	if status >= 400 {
		return ResolveStep{Kind: StepFailed, Err: &ResolveError{
			Kind:    ErrResolutionFailed,
			Message: fmt.Sprintf("server returned status %d", status),
		}}, nil
	}

	return ResolveStep{Kind: StepURL, URL: ResolvedURL{URL: input}}, nil
}
