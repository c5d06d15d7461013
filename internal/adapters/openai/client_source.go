package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ClientSource yields the SDK client to use for a request
type ClientSource interface {
	Client(ctx context.Context) (*openai.Client, error)
}

type staticSource struct {
	client *openai.Client
}

// Static always returns the same client
func Static(client *openai.Client) ClientSource {
	return staticSource{client: client}
}

func (s staticSource) Client(context.Context) (*openai.Client, error) {
	return s.client, nil
}

// OwnerKeySource picks the API key of the owner found in the request context,
// falling back to the system key through the credential resolver.
// Clients are cached per key.
type OwnerKeySource struct {
	resolver *credentials.Resolver
	baseURL  string
	fallback string
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOwnerKeySource creates a new owner aware client source.
// fallbackKey is used when the context carries no owner.
func NewOwnerKeySource(resolver *credentials.Resolver, baseURL, fallbackKey string, logger *zap.Logger) *OwnerKeySource {
	return &OwnerKeySource{
		resolver: resolver,
		baseURL:  baseURL,
		fallback: fallbackKey,
		logger:   logger,
		clients:  make(map[string]*openai.Client),
	}
}

// Client returns the client for the owner of ctx
func (s *OwnerKeySource) Client(ctx context.Context) (*openai.Client, error) {
	key := s.fallback
	if ownerID, ok := core.OwnerFromContext(ctx); ok {
		resolved, err := s.resolver.Resolve(ctx, ownerID, credentials.ServiceOpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve OpenAI key: %w", err)
		}
		key = resolved
	}
	if key == "" {
		return nil, fmt.Errorf("%w: openai", core.ErrCredentialMissing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[key]
	if !ok {
		client = NewAPIClient(key, s.baseURL)
		s.clients[key] = client
	}
	return client, nil
}
