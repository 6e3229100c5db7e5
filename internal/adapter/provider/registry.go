package provider

import (
	"fmt"
	"net/http"

	"age-verification-gateway/config"
	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

var _ ports.ProviderRegistry = (*Registry)(nil)

// Registry maps each verification method to its provider.
type Registry struct {
	providers map[domain.VerificationMethod]ports.VerificationProvider
}

// NewRegistry indexes providers by their method. A later provider for the same method wins.
func NewRegistry(providers ...ports.VerificationProvider) *Registry {
	r := &Registry{providers: make(map[domain.VerificationMethod]ports.VerificationProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Method()] = p
	}
	return r
}

// Get returns the provider for method, or an error if none is configured.
func (r *Registry) Get(method domain.VerificationMethod) (ports.VerificationProvider, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, fmt.Errorf("no provider configured for %q", method)
	}
	return p, nil
}

// NewRegistryFromConfig builds HTTP providers for every configured method URL
// plus the revalidate provider.
func NewRegistryFromConfig(
	cfg config.ProvidersConfig,
	identities ports.IdentityRepository,
	fingerprinter ports.Fingerprinter,
	log zerolog.Logger,
) (*Registry, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	providers := []ports.VerificationProvider{NewRevalidateProvider(identities, fingerprinter)}
	for name, url := range cfg.URLs {
		method, err := domain.ParseVerificationMethod(name)
		if err != nil {
			return nil, fmt.Errorf("providers.urls: %w", err)
		}
		if !method.IsIdentityMethod() {
			return nil, fmt.Errorf("providers.urls: %q cannot be served over HTTP", method)
		}
		if url == "" {
			continue
		}
		providers = append(providers, NewHTTPProvider(method, url, cfg.Token, client, log))
	}

	for _, m := range domain.IdentityMethods {
		if _, ok := cfg.URLs[string(m)]; !ok {
			log.Warn().Str("method", string(m)).Msg("No provider URL configured; method will be rejected")
		}
	}

	return NewRegistry(providers...), nil
}
