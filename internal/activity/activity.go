// Package activity turns a list of commits into dashboard metrics.
//
// Everything here is a pure function of its inputs, computed in UTC. Time
// spent coding is estimated at a flat MinutesPerCommit per commit.
package activity

import (
	"fmt"
	"time"

	"github.com/sakif/devpulse/internal/model"
)

// MinutesPerCommit is the coding-time estimate credited to each commit.
const MinutesPerCommit = 30

// maxAIScore caps AIScore.
const maxAIScore = 100

// weekOrder lists weekdays Monday first.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeeklyActivity buckets commits by UTC weekday. The result always has seven
// entries, Monday through Sunday, including days with no commits.
func WeeklyActivity(commits []model.Commit) []model.DayActivity {
	var counts [7]int // indexed by time.Weekday
	for _, c := range commits {
		counts[c.Timestamp.UTC().Weekday()]++
	}

	days := make([]model.DayActivity, 0, len(weekOrder))
	for _, wd := range weekOrder {
		n := counts[wd]
		days = append(days, model.DayActivity{
			Name:    wd.String(),
			Commits: n,
			Minutes: n * MinutesPerCommit,
		})
	}
	return days
}

// MostActiveDay returns the name of the first day in weekly with the highest
// commit count, or nil when there are no commits at all.
func MostActiveDay(weekly []model.DayActivity) *string {
	best := -1
	for i, d := range weekly {
		if d.Commits > 0 && (best < 0 || d.Commits > weekly[best].Commits) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	name := weekly[best].Name
	return &name
}

// Streak counts consecutive UTC calendar days with at least one commit,
// ending today. A day without commits breaks the streak; if today has none
// the streak is 0. Dates after today are ignored.
func Streak(dates []time.Time, now time.Time) int {
	today := truncateDay(now)

	days := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		day := truncateDay(d)
		if day.After(today) {
			continue
		}
		days[day] = struct{}{}
	}

	streak := 0
	for day := today; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
	}
}

// CodingTime buckets commits by UTC hour of day.
//
// Hourly always has 24 entries labeled "0:00" through "23:00" with value
// count*MinutesPerCommit. DailyAverageMinutes spreads the total over seven
// days using integer division. The busiest hour is the first hour with the
// maximum count; both label fields are nil when there are no commits.
func CodingTime(commits []model.Commit) model.CodingTime {
	var counts [24]int
	for _, c := range commits {
		counts[c.Timestamp.UTC().Hour()]++
	}

	hourly := make([]model.HourActivity, 0, len(counts))
	peak := -1
	for h, n := range counts {
		hourly = append(hourly, model.HourActivity{
			Name:  hourLabel(h),
			Value: n * MinutesPerCommit,
		})
		if n > 0 && (peak < 0 || n > counts[peak]) {
			peak = h
		}
	}

	ct := model.CodingTime{
		Hourly:              hourly,
		DailyAverageMinutes: len(commits) * MinutesPerCommit / 7,
	}
	if peak >= 0 {
		label := hourLabel(peak)
		peakLabel := label
		ct.MostProductiveTime = &label
		ct.PeakHourLabel = &peakLabel
	}
	return ct
}

// AIScore is 5 points per commit, capped at 100.
func AIScore(commitCount int) int {
	return min(maxAIScore, 5*commitCount)
}

// CodingMinutes sums the minutes of a weekly breakdown.
func CodingMinutes(weekly []model.DayActivity) int {
	total := 0
	for _, d := range weekly {
		total += d.Minutes
	}
	return total
}

// ReposTouched counts the distinct repositories among commits.
func ReposTouched(commits []model.Commit) int {
	seen := make(map[string]struct{})
	for _, c := range commits {
		seen[c.Repo] = struct{}{}
	}
	return len(seen)
}

func hourLabel(h int) string {
	return fmt.Sprintf("%d:00", h)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
