package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAPI serves the given routes and checks the auth header on every
// call.
func newTestAPI(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
			assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, testLogger())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// =========================================================================
// EMAILS TAGGED UNION
// =========================================================================

func TestEmailEntry_Unmarshal(t *testing.T) {
	payload := `[
		"bare@example.com",
		{"email":"secondary@example.com","primary":false,"verified":true},
		{"email":"primary@example.com","primary":true,"verified":true}
	]`

	var entries []EmailEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entries))
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Bare)
	assert.Equal(t, "bare@example.com", entries[0].Email)
	assert.False(t, entries[0].Verified)
	assert.False(t, entries[1].Bare)
	assert.True(t, entries[2].Primary)
}

func TestSelectVerifiedEmail(t *testing.T) {
	tests := []struct {
		name    string
		entries []EmailEntry
		want    string
	}{
		{
			name: "primary verified wins over earlier verified",
			entries: []EmailEntry{
				{Email: "first@example.com", Verified: true},
				{Email: "primary@example.com", Verified: true, Primary: true},
			},
			want: "primary@example.com",
		},
		{
			name: "first verified when no primary is verified",
			entries: []EmailEntry{
				{Email: "unverified-primary@example.com", Primary: true},
				{Email: "a@example.com", Verified: true},
				{Email: "b@example.com", Verified: true},
			},
			want: "a@example.com",
		},
		{
			name:    "bare strings never count",
			entries: []EmailEntry{{Email: "bare@example.com", Bare: true}},
			want:    "",
		},
		{
			name:    "nothing verified",
			entries: []EmailEntry{{Email: "x@example.com", Primary: true}},
			want:    "",
		},
		{name: "empty", entries: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectVerifiedEmail(tt.entries))
		})
	}
}

// =========================================================================
// PROFILE
// =========================================================================

func TestFetchProfile(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /user": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"id": 42, "login": "octo", "avatar_url": "https://a.test/42"})
		},
		"GET /user/emails": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `["bare@example.com",{"email":"octo@example.com","primary":true,"verified":true}]`)
		},
	})

	p, err := c.FetchProfile(context.Background(), "gho_test")
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, "octo", p.Login)
	assert.Equal(t, "https://a.test/42", p.AvatarURL)
	assert.Equal(t, "octo@example.com", p.VerifiedEmail)
}

func TestFetchProfile_EmailsFailureIsTerminal(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /user": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"id": 42, "login": "octo"})
		},
		"GET /user/emails": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			writeJSON(w, map[string]string{"message": "Resource not accessible by integration"})
		},
	})

	_, err := c.FetchProfile(context.Background(), "gho_test")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Resource not accessible")
}

func TestFetchProfile_RevokedToken(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /user": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})

	_, err := c.FetchProfile(context.Background(), "gho_test")
	assert.True(t, IsUnauthorized(err))
}

// =========================================================================
// REPOS & COMMITS
// =========================================================================

func TestListRepos(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /user/repos": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "updated", r.URL.Query().Get("sort"))
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))
			io.WriteString(w, `[
				{"name":"api","owner":{"login":"octo"},"updated_at":"2025-03-02T10:00:00Z"},
				{"name":"web","owner":{"login":"acme"},"updated_at":"2025-03-01T10:00:00Z"}
			]`)
		},
	})

	repos, err := c.ListRepos(context.Background(), "gho_test")
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, Repo{Owner: "octo", Name: "api", UpdatedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)}, repos[0])
	assert.Equal(t, "acme", repos[1].Owner)
}

func TestListCommits(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /repos/octo/api/commits": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2025-03-01T00:00:00Z", r.URL.Query().Get("since"))
			io.WriteString(w, `[
				{"sha":"abc","commit":{"message":"fix: things","author":{"date":"2025-03-03T14:30:00+02:00"}}},
				{"sha":"def","commit":{"message":"no author","author":null,"committer":{"date":"2025-03-04T09:00:00Z"}}}
			]`)
		},
	})

	commits, err := c.ListCommits(context.Background(), "gho_test", Repo{Owner: "octo", Name: "api"}, since)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, "abc", commits[0].SHA)
	assert.Equal(t, "api", commits[0].Repo)
	assert.Equal(t, "fix: things", commits[0].Message)
	assert.Equal(t, time.Date(2025, 3, 3, 12, 30, 0, 0, time.UTC), commits[0].Timestamp)
	assert.Equal(t, time.UTC, commits[0].Timestamp.Location())

	assert.Equal(t, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), commits[1].Timestamp)
}

func TestListCommits_EmptyRepository(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /repos/octo/fresh/commits": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"message":"Git Repository is empty."}`)
		},
	})

	commits, err := c.ListCommits(context.Background(), "gho_test", Repo{Owner: "octo", Name: "fresh"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestRecentCommits_ConcurrentAndOrdered(t *testing.T) {
	var inflight, peak atomic.Int32

	routes := map[string]http.HandlerFunc{}
	for _, name := range []string{"a", "b", "c"} {
		routes["GET /repos/octo/"+name+"/commits"] = func(w http.ResponseWriter, r *http.Request) {
			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inflight.Add(-1)
			fmt.Fprintf(w, `[{"sha":"%s1","commit":{"message":"m","author":{"date":"2025-03-03T10:00:00Z"}}}]`, name)
		}
	}
	c := newTestAPI(t, routes)

	repos := []Repo{{Owner: "octo", Name: "a"}, {Owner: "octo", Name: "b"}, {Owner: "octo", Name: "c"}}
	commits, err := c.RecentCommits(context.Background(), "gho_test", repos, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, []string{"a1", "b1", "c1"}, []string{commits[0].SHA, commits[1].SHA, commits[2].SHA})
	assert.Greater(t, peak.Load(), int32(1), "fetches should overlap")
}

func TestRecentCommits_AnyFailureAborts(t *testing.T) {
	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /repos/octo/ok/commits": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[]`)
		},
		"GET /repos/octo/broken/commits": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	repos := []Repo{{Owner: "octo", Name: "ok"}, {Owner: "octo", Name: "broken"}}
	commits, err := c.RecentCommits(context.Background(), "gho_test", repos, time.Now())

	require.Error(t, err)
	assert.Nil(t, commits)
	assert.True(t, strings.Contains(err.Error(), "octo/broken"), err.Error())
}

func TestRecentCommits_FailureLeavesSiblingsRunning(t *testing.T) {
	var finished, cancelled atomic.Bool

	c := newTestAPI(t, map[string]http.HandlerFunc{
		"GET /repos/octo/slow/commits": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			cancelled.Store(r.Context().Err() != nil)
			io.WriteString(w, `[]`)
			finished.Store(true)
		},
		"GET /repos/octo/broken/commits": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	repos := []Repo{{Owner: "octo", Name: "slow"}, {Owner: "octo", Name: "broken"}}
	_, err := c.RecentCommits(context.Background(), "gho_test", repos, time.Now())

	require.Error(t, err)
	assert.True(t, finished.Load(), "sibling fetch should complete")
	assert.False(t, cancelled.Load(), "sibling fetch should not be cancelled")
}

func TestRecentCommits_NoRepos(t *testing.T) {
	c := NewClient("http://unused.invalid", time.Second, testLogger())

	commits, err := c.RecentCommits(context.Background(), "gho_test", nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, commits)
}
