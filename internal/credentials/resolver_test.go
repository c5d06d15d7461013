package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapStore struct {
	secrets map[string]string
	err     error
}

func (m *mapStore) GetCredential(ctx context.Context, ownerID, service string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	secret, ok := m.secrets[ownerID+"/"+service]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (m *mapStore) SetCredential(ctx context.Context, ownerID, service, secret string) error {
	m.secrets[ownerID+"/"+service] = secret
	return nil
}

func (m *mapStore) DeleteCredential(ctx context.Context, ownerID, service string) error {
	delete(m.secrets, ownerID+"/"+service)
	return nil
}

func (m *mapStore) ListCredentialServices(ctx context.Context, ownerID string) ([]string, error) {
	return nil, nil
}

func TestResolve(t *testing.T) {
	store := &mapStore{secrets: map[string]string{
		"alice/openai": "sk-alice",
		"alice/gmail":  "alice-token",
	}}
	resolver := NewResolver(store, map[Service]string{
		ServiceOpenAI: "sk-system",
		ServiceGmail:  "system-token",
	}, zap.NewNop())

	tests := []struct {
		name    string
		owner   string
		service Service
		want    string
		wantErr error
	}{
		{name: "user openai key wins", owner: "alice", service: ServiceOpenAI, want: "sk-alice"},
		{name: "openai falls back to system key", owner: "bob", service: ServiceOpenAI, want: "sk-system"},
		{name: "user gmail token", owner: "alice", service: ServiceGmail, want: "alice-token"},
		{name: "gmail never falls back", owner: "bob", service: ServiceGmail, wantErr: core.ErrCredentialMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.owner, tt.service)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveWithoutDefault(t *testing.T) {
	resolver := NewResolver(&mapStore{secrets: map[string]string{}}, nil, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "bob", ServiceOpenAI)
	assert.ErrorIs(t, err, core.ErrCredentialMissing)
}

func TestResolveStoreFailure(t *testing.T) {
	storeErr := errors.New("database unavailable")
	resolver := NewResolver(&mapStore{err: storeErr}, map[Service]string{ServiceOpenAI: "sk-system"}, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "alice", ServiceOpenAI)
	assert.ErrorIs(t, err, storeErr)
}

func TestParseService(t *testing.T) {
	svc, err := ParseService(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, ServiceOpenAI, svc)

	svc, err = ParseService("gmail")
	require.NoError(t, err)
	assert.Equal(t, ServiceGmail, svc)
	assert.True(t, svc.RequiresUserCredential())
	assert.False(t, ServiceOpenAI.RequiresUserCredential())

	_, err = ParseService("outlook")
	assert.Error(t, err)
}
