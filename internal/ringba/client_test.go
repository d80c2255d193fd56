package ringba

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellko/affiliate-admin/internal/repository"
)

func conn(url string) *repository.RingbaConnection {
	return &repository.RingbaConnection{APIToken: "test-token", APIURL: url, AccountID: "RA1"}
}

func TestCreatePublisherNestedID(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/RA1/Publishers", r.URL.Path)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"transactionId":"tx","publishers":{"id":"PUB123","name":"PPC_N4"}}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	res, err := c.CreatePublisher(context.Background(), conn(srv.URL), "PPC_N4", "sub-1")
	require.NoError(t, err)

	assert.Equal(t, "PUB123", res.PublisherID)
	assert.Equal(t, "PPC_N4", gotBody["name"])
	assert.Equal(t, "sub-1", gotBody["subId"])
	assert.Equal(t, true, gotBody["createNumbers"])
	assert.Equal(t, false, gotBody["createUser"])
}

func TestCreatePublisherTopLevelNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":9001,"name":"PPC_N1"}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	res, err := c.CreatePublisher(context.Background(), conn(srv.URL), "PPC_N1", "")
	require.NoError(t, err)
	assert.Equal(t, "9001", res.PublisherID)
}

func TestCreatePublisherMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactionId":"tx"}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	res, err := c.CreatePublisher(context.Background(), conn(srv.URL), "PPC_N1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing publisher id")
	require.NotNil(t, res)
	assert.Contains(t, res.RawResponse, "transactionId")
}

func TestCreatePublisherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"duplicate name"}`, http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	res, err := c.CreatePublisher(context.Background(), conn(srv.URL), "PPC_N1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "duplicate name")
	// The rejected body is still handed back for persistence.
	require.NotNil(t, res)
	assert.Contains(t, res.RawResponse, "duplicate name")
}

func TestInvitePublisher(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/RA1/Publishers/PUB123/Invitations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop())
	err := c.InvitePublisher(context.Background(), conn(srv.URL), "PUB123", "john@acme.test", "John", "Doe")
	require.NoError(t, err)

	assert.Equal(t, "john@acme.test", gotBody["email"])
	assert.Equal(t, "John", gotBody["firstName"])
}

func TestExtractPublisherID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"nested string", `{"publishers":{"id":"A1"}}`, "A1", true},
		{"nested numeric", `{"publishers":{"id":55}}`, "55", true},
		{"top level string", `{"id":"B2"}`, "B2", true},
		{"nested wins over top level", `{"id":"top","publishers":{"id":"nested"}}`, "nested", true},
		{"absent", `{"ok":true}`, "", false},
		{"not json", `<xml/>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractPublisherID([]byte(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
