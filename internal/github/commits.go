package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/sakif/devpulse/internal/model"
)

// Repo identifies a repository the user can read.
type Repo struct {
	Owner     string
	Name      string
	UpdatedAt time.Time
}

type repoResponse struct {
	Name  string `json:"name"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	UpdatedAt time.Time `json:"updated_at"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  *struct {
			Date time.Time `json:"date"`
		} `json:"author"`
		Committer *struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// ListRepos returns the first page of the user's repositories, most
// recently updated first.
func (c *Client) ListRepos(ctx context.Context, token string) ([]Repo, error) {
	var raw []repoResponse
	q := pageQuery(map[string]string{"sort": "updated"})
	if err := c.get(ctx, token, "/user/repos", q, &raw); err != nil {
		return nil, err
	}

	repos := make([]Repo, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, Repo{Owner: r.Owner.Login, Name: r.Name, UpdatedAt: r.UpdatedAt})
	}
	return repos, nil
}

// ListCommits returns up to 100 commits of one repository since the given
// instant. Timestamps are the author date in UTC. GitHub answers 409 for a
// repository with no commits at all; that is an empty result, not an error.
func (c *Client) ListCommits(ctx context.Context, token string, repo Repo, since time.Time) ([]model.Commit, error) {
	var raw []commitResponse
	path := fmt.Sprintf("/repos/%s/%s/commits", url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	q := pageQuery(map[string]string{"since": since.UTC().Format(time.RFC3339)})
	if err := c.get(ctx, token, path, q, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return []model.Commit{}, nil
		}
		return nil, err
	}

	commits := make([]model.Commit, 0, len(raw))
	for _, rc := range raw {
		var ts time.Time
		switch {
		case rc.Commit.Author != nil:
			ts = rc.Commit.Author.Date
		case rc.Commit.Committer != nil:
			ts = rc.Commit.Committer.Date
		}
		commits = append(commits, model.Commit{
			SHA:       rc.SHA,
			Message:   rc.Commit.Message,
			Repo:      repo.Name,
			Timestamp: ts.UTC(),
		})
	}
	return commits, nil
}

// RecentCommits fetches commits for every repo concurrently on a worker pool
// with one worker per repo. Sibling calls run to completion; the first
// failure is returned and results keep the order of repos.
func (c *Client) RecentCommits(ctx context.Context, token string, repos []Repo, since time.Time) ([]model.Commit, error) {
	if len(repos) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		firstErr error
		perRepo  = make([][]model.Commit, len(repos))
	)

	wp := workerpool.New(len(repos))
	for i, repo := range repos {
		wp.Submit(func() {
			commits, err := c.ListCommits(ctx, token, repo, since)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("github: listing commits of %s/%s: %w", repo.Owner, repo.Name, err)
				}
				mu.Unlock()
				return
			}
			perRepo[i] = commits
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}

	var all []model.Commit
	for _, commits := range perRepo {
		all = append(all, commits...)
	}

	c.logger.Debug("fetched recent commits",
		slog.Int("repos", len(repos)),
		slog.Int("commits", len(all)),
	)
	return all, nil
}
