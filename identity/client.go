package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"chat-mesh/domain"
	"chat-mesh/errors"

	"golang.org/x/sync/errgroup"
)

// resolveConcurrency bounds parallel lookups in ResolveMany.
const resolveConcurrency = 8

const userQuery = `query GetUser($id: ID!) {
  user(id: $id) {
    id
    username
    displayName
    email
    createdAt
    updatedAt
  }
}`

// Client talks to the identity service's GraphQL endpoint over HTTP.
type Client struct {
	log        *slog.Logger
	endpoint   string
	httpClient *http.Client
}

func NewClient(log *slog.Logger, endpoint string, timeout time.Duration) *Client {
	return &Client{
		log:        log,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type userResponse struct {
	Data struct {
		User *gqlUser `json:"user"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

func (c *Client) Resolve(ctx context.Context, id string) (domain.User, error) {
	body, err := json.Marshal(gqlRequest{
		Query:     userQuery,
		Variables: map[string]any{"id": id},
	})
	if err != nil {
		return domain.User{}, errors.UpstreamError{IDs: []string{id}, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.User{}, errors.UpstreamError{IDs: []string{id}, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.User{}, errors.UpstreamError{IDs: []string{id}, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.User{}, errors.UpstreamError{
			IDs: []string{id},
			Err: fmt.Errorf("identity service returned status %d", resp.StatusCode),
		}
	}

	var decoded userResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.User{}, errors.UpstreamError{IDs: []string{id}, Err: err}
	}

	if len(decoded.Errors) > 0 {
		first := decoded.Errors[0]
		if isNotFound(first) {
			return domain.User{}, errors.NotFoundError{Entity: "user", ID: id}
		}
		return domain.User{}, errors.UpstreamError{
			IDs: []string{id},
			Err: fmt.Errorf("identity service error: %s", first.Message),
		}
	}
	if decoded.Data.User == nil {
		return domain.User{}, errors.NotFoundError{Entity: "user", ID: id}
	}

	return toUser(*decoded.Data.User), nil
}

// ResolveMany fans the lookups out in parallel. It never gives up early:
// every id is attempted, resolved users are returned even when some
// fail, and the error lists exactly the ids that did not resolve.
func (c *Client) ResolveMany(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		resolved []domain.User
		failed   []string
		firstErr error
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(resolveConcurrency)

	for _, id := range ids {
		group.Go(func() error {
			user, err := c.Resolve(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, id)
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			resolved = append(resolved, user)
			return nil
		})
	}
	_ = group.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		return resolved, errors.UpstreamError{IDs: failed, Err: firstErr}
	}
	return resolved, nil
}

func isNotFound(e gqlError) bool {
	return e.Extensions.Code == "NOT_FOUND" ||
		strings.Contains(strings.ToLower(e.Message), "not found")
}

func toUser(u gqlUser) domain.User {
	return domain.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		Resolved:    true,
	}
}
