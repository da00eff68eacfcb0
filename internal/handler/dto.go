package handler

import (
	"math"
	"time"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/service"
)

// round1 rounds hours to one decimal for display.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

// WorkSessionDTO is the JSON representation of a work session.
type WorkSessionDTO struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	Date            string     `json:"date"`
	CheckInTime     time.Time  `json:"checkInTime"`
	CheckOutTime    *time.Time `json:"checkOutTime,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
}

func toWorkSessionDTO(s *domain.WorkSession) *WorkSessionDTO {
	if s == nil {
		return nil
	}
	return &WorkSessionDTO{
		ID:              s.ID,
		UserID:          s.UserID,
		Date:            s.Date,
		CheckInTime:     s.CheckInTime,
		CheckOutTime:    s.CheckOutTime,
		DurationMinutes: s.DurationMinutes,
	}
}

func toWorkSessionDTOs(sessions []domain.WorkSession) []WorkSessionDTO {
	dtos := make([]WorkSessionDTO, len(sessions))
	for i := range sessions {
		dtos[i] = *toWorkSessionDTO(&sessions[i])
	}
	return dtos
}

// StatusDTO is the body of GET /status.
type StatusDTO struct {
	Status               domain.Status    `json:"status"`
	LastUpdated          *time.Time       `json:"lastUpdated"`
	TodaySessions        []WorkSessionDTO `json:"todaySessions"`
	TotalDurationMinutes int              `json:"totalDurationMinutes"`
}

func toStatusDTO(s *service.StatusSnapshot) StatusDTO {
	return StatusDTO{
		Status:               s.Status,
		LastUpdated:          s.LastUpdated,
		TodaySessions:        toWorkSessionDTOs(s.TodaySessions),
		TotalDurationMinutes: s.TotalMinutesToday,
	}
}

// SetStatusDTO is the body of a successful POST /status.
type SetStatusDTO struct {
	Success        bool          `json:"success"`
	Status         domain.Status `json:"status"`
	PreviousStatus domain.Status `json:"previousStatus"`
	Message        string        `json:"message"`
}

func toSetStatusDTO(r *service.TransitionResult) SetStatusDTO {
	msg := "Status updated."
	if !r.Changed() {
		msg = "Status unchanged."
	}
	return SetStatusDTO{
		Success:        true,
		Status:         r.NewStatus,
		PreviousStatus: r.PreviousStatus,
		Message:        msg,
	}
}

// MemberDTO is one entry of the presence board.
type MemberDTO struct {
	ID          int64         `json:"id"`
	DisplayName string        `json:"displayName"`
	Status      domain.Status `json:"status"`
	LastUpdated *time.Time    `json:"lastUpdated"`
}

func toMemberDTOs(members []domain.MemberPresence) []MemberDTO {
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = MemberDTO{ID: m.UserID, DisplayName: m.DisplayName, Status: m.Status, LastUpdated: m.LastUpdated}
	}
	return dtos
}

// RangeDTO is the resolved date range of a statistics response.
type RangeDTO struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func toRangeDTO(r service.DateRange) RangeDTO {
	from, to := r.Bounds()
	return RangeDTO{StartDate: from, EndDate: to}
}

// DailyStatDTO is one day of a statistics series.
type DailyStatDTO struct {
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Sessions int     `json:"sessions"`
}

func toDailyDTOs(daily []service.DailyStat) []DailyStatDTO {
	dtos := make([]DailyStatDTO, len(daily))
	for i, d := range daily {
		dtos[i] = DailyStatDTO{Date: d.Date, Hours: round1(d.Hours), Sessions: d.Sessions}
	}
	return dtos
}

// BucketDTO is one rollup bucket.
type BucketDTO struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Hours     float64 `json:"hours"`
	WorkDays  int     `json:"workDays"`
}

func toBucketDTOs(buckets []service.BucketStat) []BucketDTO {
	dtos := make([]BucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = BucketDTO{StartDate: b.Start, EndDate: b.End, Hours: round1(b.Hours), WorkDays: b.WorkDays}
	}
	return dtos
}

// SummaryDTO totals a statistics series.
type SummaryDTO struct {
	TotalHours    float64 `json:"totalHours"`
	WorkDays      int     `json:"workDays"`
	AverageHours  float64 `json:"averageHours"`
	TotalSessions int     `json:"totalSessions"`
}

func toSummaryDTO(s service.Summary) SummaryDTO {
	return SummaryDTO{
		TotalHours:    round1(s.TotalHours),
		WorkDays:      s.WorkDays,
		AverageHours:  round1(s.AverageHours),
		TotalSessions: s.TotalSessions,
	}
}

// LevelDTO is the level block of a member.
type LevelDTO struct {
	Current        int     `json:"current"`
	TotalWorkHours float64 `json:"totalWorkHours"`
	HoursToNext    float64 `json:"hoursToNext"`
	Progress       float64 `json:"progress"`
}

func toLevelDTO(l domain.LevelProgress) LevelDTO {
	return LevelDTO{
		Current:        l.Current,
		TotalWorkHours: round1(l.TotalWorkHours),
		HoursToNext:    round1(l.HoursToNext),
		Progress:       round1(l.Progress),
	}
}

// WeekdayDTO is the average worked time of one weekday.
type WeekdayDTO struct {
	Day          string  `json:"day"`
	AverageHours float64 `json:"averageHours"`
}

func toWeekdayDTOs(pattern []service.WeekdayStat) []WeekdayDTO {
	dtos := make([]WeekdayDTO, len(pattern))
	for i, w := range pattern {
		dtos[i] = WeekdayDTO{Day: w.Weekday.String(), AverageHours: round1(w.AverageHours)}
	}
	return dtos
}

// PersonalStatsDTO is the body of GET /stats/personal.
type PersonalStatsDTO struct {
	Range          RangeDTO       `json:"range"`
	Granularity    string         `json:"granularity"`
	DailyStats     []DailyStatDTO `json:"dailyStats"`
	Rollup         []BucketDTO    `json:"rollup"`
	Summary        SummaryDTO     `json:"summary"`
	Level          LevelDTO       `json:"level"`
	WeekdayPattern []WeekdayDTO   `json:"weekdayPattern"`
}

func toPersonalStatsDTO(s *service.PersonalStats) PersonalStatsDTO {
	return PersonalStatsDTO{
		Range:          toRangeDTO(s.Range),
		Granularity:    string(s.Granularity),
		DailyStats:     toDailyDTOs(s.Daily),
		Rollup:         toBucketDTOs(s.Rollup),
		Summary:        toSummaryDTO(s.Summary),
		Level:          toLevelDTO(s.Level),
		WeekdayPattern: toWeekdayDTOs(s.Weekday),
	}
}

// TeamMemberDTO is one row of the team ranking.
type TeamMemberDTO struct {
	UserID       int64   `json:"userId"`
	DisplayName  string  `json:"displayName"`
	TotalHours   float64 `json:"totalHours"`
	WorkDays     int     `json:"workDays"`
	AverageHours float64 `json:"averageHours"`
	Level        int     `json:"level"`
}

// TeamDayDTO is one day of team activity.
type TeamDayDTO struct {
	Date          string  `json:"date"`
	TotalHours    float64 `json:"totalHours"`
	ActiveMembers int     `json:"activeMembers"`
}

// TeamSummaryDTO totals the team view.
type TeamSummaryDTO struct {
	TotalHours            float64 `json:"totalHours"`
	TotalMembers          int     `json:"totalMembers"`
	ActiveMembers         int     `json:"activeMembers"`
	AverageHoursPerMember float64 `json:"averageHoursPerMember"`
}

// TeamStatsDTO is the body of GET /stats/team.
type TeamStatsDTO struct {
	Range         RangeDTO        `json:"range"`
	Members       []TeamMemberDTO `json:"members"`
	Summary       TeamSummaryDTO  `json:"summary"`
	DailyActivity []TeamDayDTO    `json:"dailyActivity"`
}

func toTeamStatsDTO(s *service.TeamStats) TeamStatsDTO {
	dto := TeamStatsDTO{
		Range:         toRangeDTO(s.Range),
		Members:       make([]TeamMemberDTO, len(s.Members)),
		DailyActivity: make([]TeamDayDTO, len(s.DailyActivity)),
		Summary: TeamSummaryDTO{
			TotalHours:            round1(s.Summary.TotalHours),
			TotalMembers:          s.Summary.TotalMembers,
			ActiveMembers:         s.Summary.ActiveMembers,
			AverageHoursPerMember: round1(s.Summary.AverageHoursPerMember),
		},
	}
	for i, m := range s.Members {
		dto.Members[i] = TeamMemberDTO{
			UserID:       m.UserID,
			DisplayName:  m.DisplayName,
			TotalHours:   round1(m.TotalHours),
			WorkDays:     m.WorkDays,
			AverageHours: round1(m.AverageHours),
			Level:        m.Level,
		}
	}
	for i, d := range s.DailyActivity {
		dto.DailyActivity[i] = TeamDayDTO{Date: d.Date, TotalHours: round1(d.TotalHours), ActiveMembers: d.ActiveMembers}
	}
	return dto
}

// MemberStatsDTO is the body of GET /stats/member.
type MemberStatsDTO struct {
	UserID            int64          `json:"userId"`
	DisplayName       string         `json:"displayName"`
	Range             RangeDTO       `json:"range"`
	DailyStats        []DailyStatDTO `json:"dailyStats"`
	Summary           SummaryDTO     `json:"summary"`
	Level             LevelDTO       `json:"level"`
	WeeklyPattern     []WeekdayDTO   `json:"weeklyPattern"`
	EarliestCheckIn   string         `json:"earliestCheckIn,omitempty"`
	LatestCheckOut    string         `json:"latestCheckOut,omitempty"`
	MostProductiveDay string         `json:"mostProductiveDay,omitempty"`
}

func toMemberStatsDTO(d *service.MemberDetail) MemberStatsDTO {
	dto := MemberStatsDTO{
		UserID:          d.UserID,
		DisplayName:     d.DisplayName,
		Range:           toRangeDTO(d.Range),
		DailyStats:      toDailyDTOs(d.Daily),
		Summary:         toSummaryDTO(d.Summary),
		Level:           toLevelDTO(d.Level),
		WeeklyPattern:   toWeekdayDTOs(d.Weekday),
		EarliestCheckIn: d.EarliestCheckIn,
		LatestCheckOut:  d.LatestCheckOut,
	}
	if d.MostProductiveDay != nil {
		dto.MostProductiveDay = d.MostProductiveDay.String()
	}
	return dto
}

// WorkLogDTO is the JSON representation of a work log.
type WorkLogDTO struct {
	ID               int64    `json:"id"`
	UserID           int64    `json:"userId"`
	Date             string   `json:"date"`
	Content          string   `json:"content"`
	Todos            []string `json:"todos"`
	CompletedTodos   []string `json:"completedTodos"`
	ROIHigh          string   `json:"roiHigh"`
	ROILow           string   `json:"roiLow"`
	TomorrowPriority string   `json:"tomorrowPriority"`
	Feedback         string   `json:"feedback"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func nonNilItems(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func toWorkLogDTO(l *domain.WorkLog) WorkLogDTO {
	return WorkLogDTO{
		ID:               l.ID,
		UserID:           l.UserID,
		Date:             l.Date,
		Content:          l.Content,
		Todos:            nonNilItems(l.Todos),
		CompletedTodos:   nonNilItems(l.CompletedTodos),
		ROIHigh:          l.ROIHigh,
		ROILow:           l.ROILow,
		TomorrowPriority: l.TomorrowPriority,
		Feedback:         l.Feedback,
		CreatedAt:        formatTime(l.CreatedAt),
		UpdatedAt:        formatTime(l.UpdatedAt),
	}
}

func toWorkLogDTOs(logs []domain.WorkLog) []WorkLogDTO {
	dtos := make([]WorkLogDTO, len(logs))
	for i := range logs {
		dtos[i] = toWorkLogDTO(&logs[i])
	}
	return dtos
}

// TeamLogDTO is a work log with its author and that day's sessions.
type TeamLogDTO struct {
	WorkLogDTO
	DisplayName string           `json:"displayName"`
	Sessions    []WorkSessionDTO `json:"sessions"`
}

// TeamLogPageDTO is one page of the team log feed.
type TeamLogPageDTO struct {
	Logs       []TeamLogDTO  `json:"logs"`
	Pagination PaginationDTO `json:"pagination"`
}

// PaginationDTO describes the window a list response covers.
type PaginationDTO struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func toTeamLogPageDTO(p *service.TeamLogPage) TeamLogPageDTO {
	dto := TeamLogPageDTO{
		Logs:       make([]TeamLogDTO, len(p.Logs)),
		Pagination: PaginationDTO{Total: p.Total, Limit: p.Limit, Offset: p.Offset},
	}
	for i := range p.Logs {
		l := &p.Logs[i]
		dto.Logs[i] = TeamLogDTO{
			WorkLogDTO:  toWorkLogDTO(&l.WorkLog),
			DisplayName: l.DisplayName,
			Sessions:    toWorkSessionDTOs(l.Sessions),
		}
	}
	return dto
}

// WorkLogTemplateDTO is the shared starting text for new logs.
type WorkLogTemplateDTO struct {
	Content   string `json:"content"`
	UpdatedBy *int64 `json:"updatedBy,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func toWorkLogTemplateDTO(t *domain.WorkLogTemplate) WorkLogTemplateDTO {
	return WorkLogTemplateDTO{Content: t.Content, UpdatedBy: t.UpdatedBy, UpdatedAt: formatTime(t.UpdatedAt)}
}
