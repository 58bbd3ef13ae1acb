package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SandaminiI/serandib-microservices/discovery"
)

// HTTPIdentityResolver exchanges session tokens for customer IDs against the
// auth service, located via service discovery.
type HTTPIdentityResolver struct {
	registry discovery.Registry
	client   *http.Client
}

func NewHTTPIdentityResolver(registry discovery.Registry) *HTTPIdentityResolver {
	return &HTTPIdentityResolver{
		registry: registry,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

func (r *HTTPIdentityResolver) ResolveCustomer(ctx context.Context, token string) (string, error) {
	baseURL, err := discovery.ServiceURL(ctx, "auth", r.registry)
	if err != nil {
		return "", fmt.Errorf("failed to discover auth service: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/sessions/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth service rejected token: status %d", resp.StatusCode)
	}

	var session struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.CustomerID == "" {
		return "", fmt.Errorf("auth service returned empty customer id")
	}
	return session.CustomerID, nil
}
