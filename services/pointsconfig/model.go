package pointsconfig

import (
	"time"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/services/ledger/event"
)

// ChurchPointsConfig holds one church's award table and feature flags.
type ChurchPointsConfig struct {
	ChurchID                   string    `gorm:"column:church_id;primaryKey;type:varchar(64)" json:"church_id"`
	AttendancePointsPresent    int64     `gorm:"column:attendance_points_present;not null" json:"attendance_points_present"`
	AttendancePointsLate       int64     `gorm:"column:attendance_points_late;not null" json:"attendance_points_late"`
	AttendancePointsExcused    int64     `gorm:"column:attendance_points_excused;not null" json:"attendance_points_excused"`
	AttendancePointsAbsent     int64     `gorm:"column:attendance_points_absent;not null" json:"attendance_points_absent"`
	TripParticipationPoints    int64     `gorm:"column:trip_participation_points;not null" json:"trip_participation_points"`
	MaxTeacherAdjustment       int64     `gorm:"column:max_teacher_adjustment;not null" json:"max_teacher_adjustment"`
	IsAttendancePointsEnabled  bool      `gorm:"column:is_attendance_points_enabled;not null" json:"is_attendance_points_enabled"`
	IsTripPointsEnabled        bool      `gorm:"column:is_trip_points_enabled;not null" json:"is_trip_points_enabled"`
	IsTeacherAdjustmentEnabled bool      `gorm:"column:is_teacher_adjustment_enabled;not null" json:"is_teacher_adjustment_enabled"`
	AwardCondition             string    `gorm:"column:award_condition;type:text" json:"award_condition,omitempty"`
	UpdatedBy                  *string   `gorm:"column:updated_by;type:varchar(64)" json:"updated_by,omitempty"`
	CreatedAt                  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt                  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ChurchPointsConfig) TableName() string {
	return "church_points_configs"
}

// Defaults returns the configuration a church gets at onboarding.
func Defaults(churchID string, p config.Points) *ChurchPointsConfig {
	return &ChurchPointsConfig{
		ChurchID:                   churchID,
		AttendancePointsPresent:    p.DefaultPresent,
		AttendancePointsLate:       p.DefaultLate,
		AttendancePointsExcused:    p.DefaultExcused,
		AttendancePointsAbsent:     p.DefaultAbsent,
		TripParticipationPoints:    p.DefaultTrip,
		MaxTeacherAdjustment:       p.DefaultMaxAdjust,
		IsAttendancePointsEnabled:  true,
		IsTripPointsEnabled:        true,
		IsTeacherAdjustmentEnabled: true,
	}
}

// AttendancePoints maps a status to its award.
func (c *ChurchPointsConfig) AttendancePoints(status event.AttendanceStatus) (int64, bool) {
	switch status {
	case event.StatusPresent:
		return c.AttendancePointsPresent, true
	case event.StatusLate:
		return c.AttendancePointsLate, true
	case event.StatusExcused:
		return c.AttendancePointsExcused, true
	case event.StatusAbsent:
		return c.AttendancePointsAbsent, true
	default:
		return 0, false
	}
}

// ClampAdjustment bounds a teacher adjustment to ±MaxTeacherAdjustment.
func (c *ChurchPointsConfig) ClampAdjustment(points int64) int64 {
	limit := c.MaxTeacherAdjustment
	switch {
	case points > limit:
		return limit
	case points < -limit:
		return -limit
	default:
		return points
	}
}

func (c *ChurchPointsConfig) Validate() error {
	var details []errutil.Detail
	check := func(field string, v int64) {
		if v < 0 {
			details = append(details, errutil.Detail{Field: field, Message: "must not be negative"})
		}
	}

	if c.ChurchID == "" {
		details = append(details, errutil.Detail{Field: "church_id", Message: "required"})
	}
	check("attendance_points_present", c.AttendancePointsPresent)
	check("attendance_points_late", c.AttendancePointsLate)
	check("attendance_points_excused", c.AttendancePointsExcused)
	check("attendance_points_absent", c.AttendancePointsAbsent)
	check("trip_participation_points", c.TripParticipationPoints)
	check("max_teacher_adjustment", c.MaxTeacherAdjustment)

	if len(details) > 0 {
		return ErrInvalidConfig.(errutil.BaseError).With(errutil.WithDetails(details...))
	}
	return nil
}

// Patch carries a partial update. Nil fields keep their current value.
type Patch struct {
	AttendancePointsPresent    *int64  `json:"attendance_points_present"`
	AttendancePointsLate       *int64  `json:"attendance_points_late"`
	AttendancePointsExcused    *int64  `json:"attendance_points_excused"`
	AttendancePointsAbsent     *int64  `json:"attendance_points_absent"`
	TripParticipationPoints    *int64  `json:"trip_participation_points"`
	MaxTeacherAdjustment       *int64  `json:"max_teacher_adjustment"`
	IsAttendancePointsEnabled  *bool   `json:"is_attendance_points_enabled"`
	IsTripPointsEnabled        *bool   `json:"is_trip_points_enabled"`
	IsTeacherAdjustmentEnabled *bool   `json:"is_teacher_adjustment_enabled"`
	AwardCondition             *string `json:"award_condition"`
}

func (p Patch) apply(c *ChurchPointsConfig) {
	setInt := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	setInt(&c.AttendancePointsPresent, p.AttendancePointsPresent)
	setInt(&c.AttendancePointsLate, p.AttendancePointsLate)
	setInt(&c.AttendancePointsExcused, p.AttendancePointsExcused)
	setInt(&c.AttendancePointsAbsent, p.AttendancePointsAbsent)
	setInt(&c.TripParticipationPoints, p.TripParticipationPoints)
	setInt(&c.MaxTeacherAdjustment, p.MaxTeacherAdjustment)
	setBool(&c.IsAttendancePointsEnabled, p.IsAttendancePointsEnabled)
	setBool(&c.IsTripPointsEnabled, p.IsTripPointsEnabled)
	setBool(&c.IsTeacherAdjustmentEnabled, p.IsTeacherAdjustmentEnabled)
	if p.AwardCondition != nil {
		c.AwardCondition = *p.AwardCondition
	}
}
