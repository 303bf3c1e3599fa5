// Package hosting is the code-hosting API boundary: a REST client for the
// hosting service plus builders that package pull-request, issue and label
// mutations as transaction operations.
//
// Unlike version-control operations, most hosting mutations are not cleanly
// revertible: a created issue cannot be un-created. The inverses in this
// package are therefore best effort — they close the created resource with
// an explanatory comment — and carry inherently weaker rollback guarantees
// than the gitops operations.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shipstream/shipstream/internal/pointer"
)

// Service is the hosting surface consumed by the operation builders. Client
// is the production implementation; tests supply fakes.
type Service interface {
	CreatePullRequest(ctx context.Context, repo string, input CreatePullRequestInput) (*PullRequest, error)
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
	ClosePullRequest(ctx context.Context, repo string, number int, comment string) error
	MergePullRequest(ctx context.Context, repo string, number int) error
	CreateIssue(ctx context.Context, repo string, input CreateIssueInput) (*Issue, error)
	CloseIssue(ctx context.Context, repo string, number int, comment string) error
	CommentIssue(ctx context.Context, repo string, number int, body string) error
	AddLabels(ctx context.Context, repo string, number int, labels []string) error
	RemoveLabel(ctx context.Context, repo string, number int, label string) error
}

// PullRequest is the hosting service's representation of a pull request.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"html_url"`
}

// Issue is the hosting service's representation of an issue.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"html_url"`
}

// CreatePullRequestInput is the payload for opening a pull request.
type CreatePullRequestInput struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CreateIssueInput is the payload for opening an issue.
type CreateIssueInput struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// updateStateInput patches the open/closed state of a pull request or
// issue; the pointer keeps unset fields out of the payload.
type updateStateInput struct {
	State *string `json:"state,omitempty"`
}

// Client is a REST client for the code-hosting API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a hosting client from config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("hosting API token is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("hosting API base URL is required")
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, repo string, input CreatePullRequestInput) (*PullRequest, error) {
	var pr PullRequest
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pulls", repo), input, &pr); err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	return &pr, nil
}

// GetPullRequest fetches a pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), nil, &pr); err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", number, err)
	}

	return &pr, nil
}

// ClosePullRequest closes a pull request, leaving an explanatory comment
// first when one is supplied.
func (c *Client) ClosePullRequest(ctx context.Context, repo string, number int, comment string) error {
	if comment != "" {
		if err := c.CommentIssue(ctx, repo, number, comment); err != nil {
			return err
		}
	}

	body := updateStateInput{State: pointer.To("closed")}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), body, nil); err != nil {
		return fmt.Errorf("close pull request %d: %w", number, err)
	}

	return nil
}

// MergePullRequest merges a pull request.
func (c *Client) MergePullRequest(ctx context.Context, repo string, number int) error {
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/pulls/%d/merge", repo, number), map[string]string{}, nil); err != nil {
		return fmt.Errorf("merge pull request %d: %w", number, err)
	}

	return nil
}

// CreateIssue opens an issue.
func (c *Client) CreateIssue(ctx context.Context, repo string, input CreateIssueInput) (*Issue, error) {
	var issue Issue
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues", repo), input, &issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	return &issue, nil
}

// CloseIssue closes an issue, leaving an explanatory comment first when one
// is supplied.
func (c *Client) CloseIssue(ctx context.Context, repo string, number int, comment string) error {
	if comment != "" {
		if err := c.CommentIssue(ctx, repo, number, comment); err != nil {
			return err
		}
	}

	body := updateStateInput{State: pointer.To("closed")}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repo, number), body, nil); err != nil {
		return fmt.Errorf("close issue %d: %w", number, err)
	}

	return nil
}

// CommentIssue adds a comment to an issue or pull request.
func (c *Client) CommentIssue(ctx context.Context, repo string, number int, body string) error {
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number), payload, nil); err != nil {
		return fmt.Errorf("comment on %d: %w", number, err)
	}

	return nil
}

// AddLabels adds labels to an issue or pull request.
func (c *Client) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	payload := map[string][]string{"labels": labels}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number), payload, nil); err != nil {
		return fmt.Errorf("add labels to %d: %w", number, err)
	}

	return nil
}

// RemoveLabel removes a single label from an issue or pull request.
func (c *Client) RemoveLabel(ctx context.Context, repo string, number int, label string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/issues/%d/labels/%s", repo, number, label), nil, nil); err != nil {
		return fmt.Errorf("remove label %q from %d: %w", label, number, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("hosting API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse hosting response: %w", err)
		}
	}

	return nil
}
