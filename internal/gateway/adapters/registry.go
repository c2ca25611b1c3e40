package adapters

import (
	"strings"

	"github.com/campushq/paycore/internal/gateway/domain"
)

type Registry struct {
	factories map[string]domain.Factory
}

func NewRegistry(factories ...domain.Factory) *Registry {
	registry := &Registry{factories: map[string]domain.Factory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		gateway := strings.ToLower(strings.TrimSpace(factory.Gateway()))
		if gateway == "" {
			continue
		}
		registry.factories[gateway] = factory
	}
	return registry
}

func (r *Registry) GatewayExists(gateway string) bool {
	if r == nil {
		return false
	}
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	_, ok := r.factories[gateway]
	return ok
}

func (r *Registry) Gateways() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

func (r *Registry) NewAdapter(gateway string) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrGatewayNotFound
	}
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	factory, ok := r.factories[gateway]
	if !ok {
		return nil, domain.ErrGatewayNotFound
	}
	return factory.NewAdapter()
}
