package model

import "time"

// Commit is a single commit fetched from GitHub for a dashboard request.
// It is never persisted.
type Commit struct {
	SHA       string    `json:"id"`
	Message   string    `json:"message"`
	Repo      string    `json:"repo"`
	Timestamp time.Time `json:"timestamp"`
}

// Dashboard is the JSON document served by GET /dashboard.
//
// Pointer fields serialize as null, which the frontend uses to tell
// "no data yet" apart from a zero value.
type Dashboard struct {
	Metrics        *DashboardMetrics `json:"metrics"`
	WeeklyActivity []DayActivity     `json:"weeklyActivity"`
	GitHub         DashboardGitHub   `json:"github"`
	CodingTime     CodingTime        `json:"codingTime"`
	AIInsight      *AIInsight        `json:"aiInsight"`
	Meta           DashboardMeta     `json:"meta"`
}

type DashboardMetrics struct {
	WeeklyCommits int `json:"weeklyCommits"`
	CodingMinutes int `json:"codingMinutes"`
	StreakDays    int `json:"streakDays"`
	AIScore       int `json:"aiScore"`
}

// DayActivity is one weekday bucket of the weekly activity chart.
type DayActivity struct {
	Name    string `json:"name"`
	Commits int    `json:"commits"`
	Minutes int    `json:"minutes"`
}

type DashboardGitHub struct {
	MostActiveDay *string  `json:"mostActiveDay"`
	ReposTouched  int      `json:"reposTouched"`
	RecentCommits []Commit `json:"recentCommits"`
}

// HourActivity is one hour-of-day bucket; Name is "H:00".
type HourActivity struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type CodingTime struct {
	Hourly              []HourActivity `json:"hourly"`
	DailyAverageMinutes int            `json:"dailyAverageMinutes"`
	MostProductiveTime  *string        `json:"mostProductiveTime"`
	PeakHourLabel       *string        `json:"peakHourLabel"`
}

type AIInsight struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type DashboardMeta struct {
	Source      string     `json:"source"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Warnings    []string   `json:"warnings"`
}
