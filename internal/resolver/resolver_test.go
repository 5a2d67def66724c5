package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectResolverPassesThroughPlainURL(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewDirectResolver())

	got, err := reg.ResolveToURL(context.Background(), "https://example.com/a.pdf", InputURL, Context{})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a.pdf", got.URL)
	require.Equal(t, "direct", got.ResolvedBy)
}

func TestResolveToURLNoResolverFails(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.ResolveToURL(context.Background(), "doi:10.1/abc", InputDOI, Context{})
	require.Error(t, err)
	re, ok := AsResolveError(err)
	require.True(t, ok)
	require.Equal(t, ErrNoResolver, re.Kind)
}

// mockSpecializedResolver is the S6 seed scenario's mock: a Specialized
// resolver for DOI inputs that redirects once to a fixed URL.
type mockSpecializedResolver struct {
	target string
}

func (mockSpecializedResolver) Name() string     { return "mock_doi" }
func (mockSpecializedResolver) Priority() Priority { return Specialized }
func (mockSpecializedResolver) CanHandle(_ string, inputType InputType) bool {
	return inputType == InputDOI
}
func (m mockSpecializedResolver) Resolve(_ context.Context, _ string, _ Context) (ResolveStep, error) {
	return ResolveStep{Kind: StepRedirect, Redirect: m.target}, nil
}

func TestResolverChainFollowsRedirectToFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewDirectResolver())
	reg.Register(mockSpecializedResolver{target: "https://example.com/final"})

	got, err := reg.ResolveToURL(context.Background(), "10.1000/xyz123", InputDOI, Context{})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/final", got.URL)
}

type alwaysRedirectResolver struct{}

func (alwaysRedirectResolver) Name() string       { return "loop" }
func (alwaysRedirectResolver) Priority() Priority { return Specialized }
func (alwaysRedirectResolver) CanHandle(_ string, _ InputType) bool { return true }
func (alwaysRedirectResolver) Resolve(_ context.Context, input string, _ Context) (ResolveStep, error) {
	return ResolveStep{Kind: StepRedirect, Redirect: input + "/x"}, nil
}

func TestResolverChainBoundsRedirectDepth(t *testing.T) {
	reg := NewRegistry()
	reg.Register(alwaysRedirectResolver{})

	_, err := reg.ResolveToURL(context.Background(), "https://example.com", InputURL, Context{})
	require.Error(t, err)
	re, ok := AsResolveError(err)
	require.True(t, ok)
	require.Equal(t, ErrTooManyRedirects, re.Kind)
}

type declineResolver struct{ name string }

func (d declineResolver) Name() string       { return d.name }
func (declineResolver) Priority() Priority   { return Specialized }
func (declineResolver) CanHandle(_ string, _ InputType) bool { return true }
func (declineResolver) Resolve(_ context.Context, _ string, _ Context) (ResolveStep, error) {
	return ResolveStep{Kind: StepFailed, Err: &ResolveError{Kind: ErrResolutionFailed, Message: "declined"}}, nil
}

func TestAllResolversFailedWhenEveryHandlerDeclines(t *testing.T) {
	reg := NewRegistry()
	reg.Register(declineResolver{name: "a"})
	reg.Register(declineResolver{name: "b"})

	_, err := reg.ResolveToURL(context.Background(), "https://example.com", InputURL, Context{})
	require.Error(t, err)
	re, ok := AsResolveError(err)
	require.True(t, ok)
	require.Equal(t, ErrAllResolversFailed, re.Kind)
	require.Equal(t, 2, re.Tried)
}

func TestFindHandlersOrdersByPriorityThenRegistration(t *testing.T) {
	reg := NewRegistry()
	direct := NewDirectResolver()
	site := NewSiteLoginAwareResolver()
	reg.Register(direct)
	reg.Register(site)

	handlers := reg.FindHandlers("https://example.com", InputURL)
	require.Len(t, handlers, 2)
	require.Equal(t, "site_login_aware", handlers[0].Name()) // General before Fallback
	require.Equal(t, "direct", handlers[1].Name())
}

// A doi:- or https://doi.org/-prefixed input must be normalized before
// it is appended to the doi.org lookup URL, or the lookup is malformed.
func TestDOIResolverNormalizesPrefixedInput(t *testing.T) {
	var requestedURL string
	r := DOIResolver{}
	step, err := r.Resolve(context.Background(), "doi:10.1000/xyz123", Context{
		Fetch: func(_ context.Context, url string) (int, string, []byte, error) {
			requestedURL = url
			return 302, "https://publisher.example.com/article", nil, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "https://doi.org/10.1000/xyz123", requestedURL)
	require.Equal(t, StepRedirect, step.Kind)
	require.Equal(t, "https://publisher.example.com/article", step.Redirect)
}

func TestDOIResolverNormalizesDOIOrgPrefixedInput(t *testing.T) {
	var requestedURL string
	r := DOIResolver{}
	_, err := r.Resolve(context.Background(), "https://doi.org/10.1000/xyz123", Context{
		Fetch: func(_ context.Context, url string) (int, string, []byte, error) {
			requestedURL = url
			return 404, "", nil, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "https://doi.org/10.1000/xyz123", requestedURL)
}

func TestSiteResolverReturnsNeedsAuthOn401(t *testing.T) {
	r := NewSiteLoginAwareResolver()
	step, err := r.Resolve(context.Background(), "https://example.com/doc", Context{
		Fetch: func(_ context.Context, _ string) (int, string, []byte, error) {
			return 401, "", nil, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, StepNeedsAuth, step.Kind)
	require.Equal(t, "example.com", step.Domain)
}
