package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type secretStore struct {
	secrets map[string]string
}

func (s *secretStore) GetCredential(_ context.Context, ownerID, service string) (string, error) {
	if secret, ok := s.secrets[ownerID+"/"+service]; ok {
		return secret, nil
	}
	return "", credentials.ErrNotFound
}

func (s *secretStore) SetCredential(context.Context, string, string, string) error { return nil }

func (s *secretStore) DeleteCredential(context.Context, string, string) error { return nil }

func (s *secretStore) ListCredentialServices(context.Context, string) ([]string, error) {
	return nil, nil
}

type fakeGmail struct {
	t       *testing.T
	query   string
	labels  string
	trashed []string
	auth    []string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/gmail/v1/users/me/messages":
		f.query = r.URL.Query().Get("q")
		f.labels = r.URL.Query().Get("labelIds")
		_, _ = w.Write([]byte(`{"messages": [{"id": "m1", "threadId": "t1"}, {"id": "m2", "threadId": "t2"}, {"id": "m3", "threadId": "t3"}]}`))
	case r.Method == http.MethodGet && r.URL.Path == "/gmail/v1/users/me/messages/m1":
		_, _ = w.Write([]byte(`{"id": "m1", "snippet": "Tom &amp; Jerry", "payload": {"headers": [
			{"name": "Subject", "value": "Cartoon night"},
			{"name": "From", "value": "Tom <tom@example.com>"}
		]}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/gmail/v1/users/me/messages/m2":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "not found"}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/gmail/v1/users/me/messages/m3":
		_, _ = w.Write([]byte(`{"id": "m3", "snippet": "", "payload": {"headers": []}}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/trash"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/"), "/trash")
		f.trashed = append(f.trashed, id)
		_, _ = w.Write([]byte(`{"id": "` + id + `"}`))
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newProvider(t *testing.T, secrets map[string]string) (*Provider, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{t: t}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	resolver := credentials.NewResolver(&secretStore{secrets: secrets}, nil, zap.NewNop())
	provider := NewProvider(resolver, OAuthClient{ClientID: "id", ClientSecret: "secret"}, "me", 24*time.Hour, zap.NewNop(),
		option.WithEndpoint(server.URL+"/"))
	return provider, fake
}

func TestFetchRecent(t *testing.T) {
	provider, fake := newProvider(t, map[string]string{"alice/gmail": "raw-access-token"})

	mailbox, err := provider.Mailbox(context.Background(), "alice")
	require.NoError(t, err)

	gm := mailbox.(*Mailbox)
	gm.now = func() time.Time { return time.Unix(1_700_086_400, 0) }

	emails, err := mailbox.FetchRecent(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, "after:1700000000 category:primary", fake.query)
	assert.Equal(t, "INBOX", fake.labels)
	assert.Equal(t, "Bearer raw-access-token", fake.auth[0])
	assert.Equal(t, []core.Email{
		{EmailID: "m1", Subject: "Cartoon night", Sender: "Tom <tom@example.com>", Snippet: "Tom & Jerry"},
		{EmailID: "m3", Subject: defaultSubject, Sender: defaultSender, Snippet: ""},
	}, emails)
}

func TestTrash(t *testing.T) {
	provider, fake := newProvider(t, map[string]string{"alice/gmail": "raw-access-token"})

	mailbox, err := provider.Mailbox(context.Background(), "alice")
	require.NoError(t, err)

	require.NoError(t, mailbox.Trash(context.Background(), "m1"))
	assert.Equal(t, []string{"m1"}, fake.trashed)
}

func TestMailboxWithoutCredential(t *testing.T) {
	provider, _ := newProvider(t, nil)

	_, err := provider.Mailbox(context.Background(), "bob")
	assert.ErrorIs(t, err, core.ErrCredentialMissing)
}

func TestTokenSource(t *testing.T) {
	client := OAuthClient{ClientID: "app-id", ClientSecret: "app-secret"}

	t.Run("raw token", func(t *testing.T) {
		ts, refreshable := client.tokenSource(context.Background(), "ya29.raw")
		assert.False(t, refreshable)

		token, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "ya29.raw", token.AccessToken)
	})

	t.Run("authorized user json", func(t *testing.T) {
		secret := `{"token": "ya29.json", "refresh_token": "1//refresh", "expiry": "2999-01-01T00:00:00Z"}`
		ts, refreshable := client.tokenSource(context.Background(), secret)
		assert.True(t, refreshable)

		token, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "ya29.json", token.AccessToken)
		assert.Equal(t, "1//refresh", token.RefreshToken)
	})

	t.Run("oauth token json", func(t *testing.T) {
		secret := `{"access_token": "ya29.oauth", "token_type": "Bearer", "expiry": "2999-01-01T00:00:00Z"}`
		ts, refreshable := client.tokenSource(context.Background(), secret)
		assert.False(t, refreshable)

		token, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "ya29.oauth", token.AccessToken)
	})
}
