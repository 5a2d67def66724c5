package resolver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fetchcite/fetchcite/internal/inputparse"
)

// doiEndpoint is the canonical DOI resolution service.
const doiEndpoint = "https://doi.org/"

// DOIResolver is a Specialized resolver for InputDOI inputs. It issues a
// request against the DOI redirect endpoint and surfaces the publisher's
// landing page as a Redirect step for the registry loop to follow.
type DOIResolver struct{}

// NewDOIResolver constructs the DOI-to-publisher-URL resolver.
func NewDOIResolver() *DOIResolver {
	return &DOIResolver{}
}

func (DOIResolver) Name() string { return "doi" }

func (DOIResolver) Priority() Priority { return Specialized }

func (DOIResolver) CanHandle(_ string, inputType InputType) bool {
	return inputType == InputDOI
}

func (DOIResolver) Resolve(ctx context.Context, input string, rctx Context) (ResolveStep, error) {
	if rctx.Fetch == nil {
		return ResolveStep{}, &ResolveError{Kind: ErrResolutionFailed, Message: "doi resolver: no fetch function configured"}
	}

	doi := inputparse.NormalizeDOI(input)
	doiURL := doiEndpoint + doi
	status, location, _, err := rctx.Fetch(ctx, doiURL)
	if err != nil {
		return ResolveStep{}, &ResolveError{Kind: ErrResolutionFailed, Message: fmt.Sprintf("doi lookup failed: %v", err)}
	}

	switch {
	case status >= 300 && status < 400 && location != "":
		return ResolveStep{Kind: StepRedirect, Redirect: location}, nil
	case status == http.StatusOK:
		// Some DOI registrars resolve in-band without a redirect; the
		// request URL itself is already the landing page, so this is
		// terminal rather than another hop through the registry loop.
		return ResolveStep{Kind: StepURL, URL: ResolvedURL{URL: doiURL, DOI: doi}}, nil
	default:
		return ResolveStep{Kind: StepFailed, Err: &ResolveError{
			Kind:    ErrResolutionFailed,
			Message: fmt.Sprintf("doi.org returned status %d", status),
		}}, nil
	}
}
