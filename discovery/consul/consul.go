// Package consul backs the discovery.Registry interface with a Consul agent.
// Instances register with a TTL check, so liveness is pushed by the service
// (the health-check loop in each main) rather than probed by Consul.
package consul

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	consul "github.com/hashicorp/consul/api"

	"github.com/SandaminiI/serandib-microservices/discovery"
)

const (
	// checkTTL is how long an instance stays passing without an UpdateTTL;
	// the registration loop refreshes every second, so 5s tolerates a few
	// missed beats.
	checkTTL = "5s"
	// deregisterAfter removes instances whose check stayed critical, keeping
	// crashed instances out of Discover results.
	deregisterAfter = "10s"
)

type Registry struct {
	client *consul.Client
}

func NewRegistry(addr string) (*Registry, error) {
	config := consul.DefaultConfig()
	config.Address = addr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &Registry{client: client}, nil
}

func (r *Registry) Register(ctx context.Context, instanceID, serviceName, hostPort string) error {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in %q: %w", hostPort, err)
	}

	registration := &consul.AgentServiceRegistration{
		ID:      instanceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &consul.AgentServiceCheck{
			CheckID:                        instanceID,
			TLSSkipVerify:                  true,
			TTL:                            checkTTL,
			DeregisterCriticalServiceAfter: deregisterAfter,
		},
	}

	if err := r.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register %s instance %s: %w", serviceName, instanceID, err)
	}
	return nil
}

func (r *Registry) Deregister(ctx context.Context, instanceID, serviceName string) error {
	log.Printf("deregistering %s instance %s", serviceName, instanceID)
	return r.client.Agent().ServiceDeregister(instanceID)
}

// Discover returns host:port addresses of instances whose checks pass.
func (r *Registry) Discover(ctx context.Context, serviceName string) ([]string, error) {
	entries, _, err := r.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s instances: %w", serviceName, err)
	}

	addrs := make([]string, 0, len(entries))
	for _, entry := range entries {
		addrs = append(addrs, net.JoinHostPort(
			entry.Service.Address,
			strconv.Itoa(entry.Service.Port),
		))
	}

	return addrs, nil
}

func (r *Registry) HealthCheck(instanceID, serviceName string) error {
	return r.client.Agent().UpdateTTL(instanceID, "online", consul.HealthPassing)
}

var _ discovery.Registry = (*Registry)(nil)
