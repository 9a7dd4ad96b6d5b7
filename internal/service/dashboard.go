package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/sakif/devpulse/internal/activity"
	"github.com/sakif/devpulse/internal/apperror"
	"github.com/sakif/devpulse/internal/github"
	"github.com/sakif/devpulse/internal/model"
)

const (
	dashboardSource     = "github"
	notConnectedWarning = "GitHub not connected yet"
	recentCommitLimit   = 5
)

// CommitSource lists a user's repositories and their recent commits.
// *github.Client satisfies it.
type CommitSource interface {
	ListRepos(ctx context.Context, token string) ([]github.Repo, error)
	RecentCommits(ctx context.Context, token string, repos []github.Repo, since time.Time) ([]model.Commit, error)
}

// DashboardService builds the activity dashboard from live GitHub data.
// Nothing is cached: every call hits GitHub.
type DashboardService struct {
	source    CommitSource
	repoLimit int
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewDashboardService creates a DashboardService that reads the repoLimit
// most recently updated repositories over the trailing window.
func NewDashboardService(source CommitSource, repoLimit int, window time.Duration, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		source:    source,
		repoLimit: repoLimit,
		window:    window,
		now:       time.Now,
		logger:    logger,
	}
}

// Build computes the dashboard for account. An account without a usable
// GitHub link gets NotConnectedDashboard. Any GitHub failure aborts the whole
// build with apperror.Upstream; there is no partial dashboard.
func (s *DashboardService) Build(ctx context.Context, account *model.Account) (*model.Dashboard, error) {
	if !account.GitHubConnected() {
		return NotConnectedDashboard(), nil
	}

	token := account.GitHub.AccessToken
	now := s.now().UTC()
	since := now.Add(-s.window)

	repos, err := s.source.ListRepos(ctx, token)
	if err != nil {
		return nil, s.upstreamError(account, err)
	}
	if len(repos) > s.repoLimit {
		repos = repos[:s.repoLimit]
	}

	commits, err := s.source.RecentCommits(ctx, token, repos, since)
	if err != nil {
		return nil, s.upstreamError(account, err)
	}

	weekly := activity.WeeklyActivity(commits)
	dates := make([]time.Time, 0, len(commits))
	for _, c := range commits {
		dates = append(dates, c.Timestamp)
	}

	s.logger.Debug("dashboard built",
		slog.String("accountID", account.ID),
		slog.Int("repos", len(repos)),
		slog.Int("commits", len(commits)),
	)

	return &model.Dashboard{
		Metrics: &model.DashboardMetrics{
			WeeklyCommits: len(commits),
			CodingMinutes: activity.CodingMinutes(weekly),
			StreakDays:    activity.Streak(dates, now),
			AIScore:       activity.AIScore(len(commits)),
		},
		WeeklyActivity: weekly,
		GitHub: model.DashboardGitHub{
			MostActiveDay: activity.MostActiveDay(weekly),
			ReposTouched:  activity.ReposTouched(commits),
			RecentCommits: newestCommits(commits, recentCommitLimit),
		},
		CodingTime: activity.CodingTime(commits),
		AIInsight:  nil,
		Meta: model.DashboardMeta{
			Source:      dashboardSource,
			LastUpdated: &now,
			Warnings:    []string{},
		},
	}, nil
}

// NotConnectedDashboard is the explicit empty shape for accounts without a
// linked GitHub identity. Slices are non-nil so they serialize as [].
func NotConnectedDashboard() *model.Dashboard {
	return &model.Dashboard{
		Metrics:        nil,
		WeeklyActivity: []model.DayActivity{},
		GitHub: model.DashboardGitHub{
			RecentCommits: []model.Commit{},
		},
		CodingTime: model.CodingTime{
			Hourly: []model.HourActivity{},
		},
		Meta: model.DashboardMeta{
			Source:   dashboardSource,
			Warnings: []string{notConnectedWarning},
		},
	}
}

func (s *DashboardService) upstreamError(account *model.Account, err error) error {
	s.logger.Warn("github fetch failed",
		slog.String("accountID", account.ID),
		slog.String("error", err.Error()),
	)
	if github.IsUnauthorized(err) {
		return apperror.Upstream("GitHub access was revoked, please reconnect GitHub", err)
	}
	return apperror.Upstream("failed to fetch GitHub activity", err)
}

// newestCommits returns up to n commits, newest first.
func newestCommits(commits []model.Commit, n int) []model.Commit {
	sorted := slices.Clone(commits)
	slices.SortStableFunc(sorted, func(a, b model.Commit) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []model.Commit{}
	}
	return sorted
}
