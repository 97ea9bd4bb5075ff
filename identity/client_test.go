package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-mesh/errors"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(slog.Default(), server.URL, 2*time.Second)
}

func userPayload(id, username string) string {
	return fmt.Sprintf(`{"data":{"user":{"id":%q,"username":%q,"displayName":"Display","email":"%s@example.com","createdAt":"2026-01-02T03:04:05Z","updatedAt":"2026-01-02T03:04:05Z"}}}`, id, username, username)
}

func TestClient_Resolve_Returns_A_Resolved_User(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("application/json", r.Header.Get("Content-Type"))

		var decoded gqlRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&decoded))
		req.Contains(decoded.Query, "user(id: $id)")
		req.Equal("u1", decoded.Variables["id"])

		fmt.Fprint(w, userPayload("u1", "alice"))
	})

	user, err := client.Resolve(context.Background(), "u1")
	req.NoError(err)
	req.Equal("u1", user.ID)
	req.Equal("alice", user.Username)
	req.Equal("alice@example.com", user.Email)
	req.True(user.Resolved)
	req.Equal(2026, user.CreatedAt.Year())
}

func TestClient_Resolve_Maps_Unknown_User_To_NotFound(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"user":null},"errors":[{"message":"User u9 not found","extensions":{"code":"NOT_FOUND"}}]}`)
	})

	_, err := client.Resolve(context.Background(), "u9")

	var notFound errors.NotFoundError
	req.ErrorAs(err, &notFound)
	req.Equal("user", notFound.Entity)
	req.Equal("u9", notFound.ID)
}

func TestClient_Resolve_Null_User_Without_Errors_Is_NotFound(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"user":null}}`)
	})

	_, err := client.Resolve(context.Background(), "ghost")

	var notFound errors.NotFoundError
	req.ErrorAs(err, &notFound)
}

func TestClient_Resolve_Maps_Server_Failure_To_Upstream(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Resolve(context.Background(), "u1")

	var upstream errors.UpstreamError
	req.ErrorAs(err, &upstream)
	req.Equal([]string{"u1"}, upstream.IDs)
}

func TestClient_Resolve_Maps_Graphql_Error_To_Upstream(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"internal failure","extensions":{"code":"INTERNAL"}}]}`)
	})

	_, err := client.Resolve(context.Background(), "u1")

	var upstream errors.UpstreamError
	req.ErrorAs(err, &upstream)
}

func TestClient_Resolve_Unreachable_Endpoint_Is_Upstream(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), "http://127.0.0.1:1/graphql", 200*time.Millisecond)

	_, err := client.Resolve(context.Background(), "u1")

	var upstream errors.UpstreamError
	req.ErrorAs(err, &upstream)
}

func TestClient_ResolveMany_Returns_Partial_Results_And_Failed_Ids(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var decoded gqlRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&decoded))
		id := decoded.Variables["id"].(string)
		switch id {
		case "u1", "u2":
			fmt.Fprint(w, userPayload(id, "user-"+id))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	resolved, err := client.ResolveMany(context.Background(), []string{"u1", "u4", "u2", "u3"})

	// Every id was attempted: the good ones come back, the error names
	// exactly the bad ones.
	var upstream errors.UpstreamError
	req.ErrorAs(err, &upstream)
	req.Equal([]string{"u3", "u4"}, upstream.IDs)
	req.Len(resolved, 2)
	got := map[string]bool{}
	for _, user := range resolved {
		got[user.ID] = user.Resolved
	}
	req.Equal(map[string]bool{"u1": true, "u2": true}, got)
}

func TestClient_ResolveMany_All_Succeed(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var decoded gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&decoded))
		fmt.Fprint(w, userPayload(decoded.Variables["id"].(string), "someone"))
	})

	resolved, err := client.ResolveMany(context.Background(), []string{"a", "b", "c"})
	req.NoError(err)
	req.Len(resolved, 3)
}

func TestClient_ResolveMany_Empty_Input_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for an empty id list")
	})

	resolved, err := client.ResolveMany(context.Background(), nil)
	req.NoError(err)
	req.Empty(resolved)
}
