package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{BaseURL: "https://api.example.com", Repository: "org/repo", Token: "tok"},
		},
		{
			name:    "missing token",
			cfg:     Config{BaseURL: "https://api.example.com", Repository: "org/repo"},
			wantErr: "token is required",
		},
		{
			name:    "missing base URL",
			cfg:     Config{Repository: "org/repo", Token: "tok"},
			wantErr: "base URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, client)

				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func Test_NewClient_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{BaseURL: "https://api.example.com/", Repository: "org/repo", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.baseURL)
}

// newServerClient returns a client pointed at an httptest server running
// handler.
func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Repository: "org/repo", Token: "tok"})
	require.NoError(t, err)

	return client
}

func Test_Client_CreatePullRequest(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/org/repo/pulls", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var input CreatePullRequestInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "Fix flaky retry", input.Title)
		assert.Equal(t, "fix/retry", input.Head)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(PullRequest{Number: 42, Title: input.Title, State: "open"})
	})

	pr, err := client.CreatePullRequest(context.Background(), "org/repo", CreatePullRequestInput{
		Title: "Fix flaky retry", Head: "fix/retry", Base: "main",
	})

	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "open", pr.State)
}

func Test_Client_ClosePullRequest_CommentsFirst(t *testing.T) {
	t.Parallel()

	var paths []string
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	err := client.ClosePullRequest(context.Background(), "org/repo", 42, "rolled back")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /repos/org/repo/issues/42/comments",
		"PATCH /repos/org/repo/pulls/42",
	}, paths)
}

func Test_Client_APIErrorIncludesBody(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	})

	_, err := client.CreatePullRequest(context.Background(), "org/repo", CreatePullRequestInput{})

	require.ErrorContains(t, err, "status 422")
	require.ErrorContains(t, err, "Validation Failed")
}

func Test_Client_Labels(t *testing.T) {
	t.Parallel()

	var requests []string
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, client.AddLabels(ctx, "org/repo", 7, []string{"automated", "release"}))
	require.NoError(t, client.RemoveLabel(ctx, "org/repo", 7, "automated"))

	assert.Equal(t, []string{
		"POST /repos/org/repo/issues/7/labels",
		"DELETE /repos/org/repo/issues/7/labels/automated",
	}, requests)
}

func Test_Client_MergePullRequest(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/repos/org/repo/pulls/9/merge", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.MergePullRequest(context.Background(), "org/repo", 9))
}

func Test_Client_CreateIssue(t *testing.T) {
	t.Parallel()

	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/issues", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Issue{Number: 11, Title: "Release tracking", State: "open"})
	})

	issue, err := client.CreateIssue(context.Background(), "org/repo", CreateIssueInput{Title: "Release tracking"})

	require.NoError(t, err)
	assert.Equal(t, 11, issue.Number)
}
