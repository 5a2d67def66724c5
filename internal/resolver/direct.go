package resolver

import "context"

// DirectResolver is the mandatory Fallback-priority resolver: it accepts
// only InputURL and passes the input through unchanged, guaranteeing
// plain URLs always resolve without a network call.
type DirectResolver struct{}

// NewDirectResolver constructs the passthrough fallback resolver.
func NewDirectResolver() *DirectResolver {
	return &DirectResolver{}
}

func (DirectResolver) Name() string { return "direct" }

func (DirectResolver) Priority() Priority { return Fallback }

func (DirectResolver) CanHandle(input string, inputType InputType) bool {
	return inputType == InputURL
}

func (DirectResolver) Resolve(_ context.Context, input string, _ Context) (ResolveStep, error) {
	return ResolveStep{
		Kind: StepURL,
		URL:  ResolvedURL{URL: input},
	}, nil
}
