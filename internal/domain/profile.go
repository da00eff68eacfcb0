package domain

import (
	"context"
	"math"
)

// HoursPerLevel is the number of worked hours needed to gain one level.
const HoursPerLevel = 8

// Profile holds a user's cumulative worked hours and the level derived from them.
type Profile struct {
	UserID         int64
	DisplayName    string
	TotalWorkHours float64
	Level          int
}

// NewProfile returns the accumulator of a user that has not worked yet.
func NewProfile(userID int64) *Profile {
	return &Profile{UserID: userID, Level: 1}
}

// LevelForHours returns floor(hours/8)+1.
func LevelForHours(hours float64) int {
	if hours < 0 {
		hours = 0
	}
	return int(math.Floor(hours/HoursPerLevel)) + 1
}

// AddMinutes accumulates a closed session's duration and recomputes the level.
// Negative durations are ignored so neither total nor level can decrease.
func (p *Profile) AddMinutes(minutes int) {
	if minutes > 0 {
		p.TotalWorkHours += float64(minutes) / 60
	}
	p.Level = LevelForHours(p.TotalWorkHours)
}

// LevelProgress describes how far a profile is into its current level.
type LevelProgress struct {
	Current        int
	TotalWorkHours float64
	HoursToNext    float64
	Progress       float64 // percent of the current level completed
}

// Progress computes the level block shown on the personal stats view.
func (p *Profile) Progress() LevelProgress {
	level := p.Level
	if level < 1 {
		level = LevelForHours(p.TotalWorkHours)
	}
	base := float64(level-1) * HoursPerLevel
	next := float64(level) * HoursPerLevel
	return LevelProgress{
		Current:        level,
		TotalWorkHours: p.TotalWorkHours,
		HoursToNext:    math.Max(0, next-p.TotalWorkHours),
		Progress:       (p.TotalWorkHours - base) / HoursPerLevel * 100,
	}
}

// ProfileRepository persists profile accumulators.
type ProfileRepository interface {
	Get(ctx context.Context, userID int64) (*Profile, error)
	// Save upserts the accumulator columns of the profile.
	Save(ctx context.Context, profile *Profile) error
	List(ctx context.Context) ([]Profile, error)
}
