package discovery

import (
	"context"
	"fmt"
	"math/rand"
)

// ServiceURL resolves a service through the registry and returns a base URL
// for one of its instances. Instance selection is random; good enough until
// we need weighted balancing.
func ServiceURL(ctx context.Context, serviceName string, registry Registry) (string, error) {
	addrs, err := registry.Discover(ctx, serviceName)
	if err != nil {
		return "", err
	}

	if len(addrs) == 0 {
		return "", fmt.Errorf("no instances found for service %s", serviceName)
	}

	selected := addrs[rand.Intn(len(addrs))]
	return "http://" + selected, nil
}
