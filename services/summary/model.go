package summary

import (
	"time"

	"sundayschool-points/pkg/db/pagination"
	"sundayschool-points/services/ledger"
	"sundayschool-points/services/ledger/event"
)

// Totals sums a user's log per reporting category. Store is the net effect
// of store orders on available points, so a cancelled order nets to zero.
type Totals struct {
	UserID      string                          `json:"user_id"`
	Since       *time.Time                      `json:"since,omitempty"`
	Activity    int64                           `json:"activity"`
	Attendance  int64                           `json:"attendance"`
	Trips       int64                           `json:"trips"`
	Adjustments int64                           `json:"adjustments"`
	Store       int64                           `json:"store"`
	Net         int64                           `json:"net"`
	ByType      map[event.TransactionType]int64 `json:"by_type"`
}

func (t *Totals) add(typ event.TransactionType, points int64) {
	t.ByType[typ] += points
	t.Net += points

	switch typ.Category() {
	case event.CategoryActivity:
		t.Activity += points
	case event.CategoryAttendance:
		t.Attendance += points
	case event.CategoryTrips:
		t.Trips += points
	case event.CategoryAdjustments:
		t.Adjustments += points
	case event.CategoryStore:
		t.Store += points
	}
}

type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	TotalEarned     int64  `json:"total_earned"`
	AvailablePoints int64  `json:"available_points"`
}

type TransactionPage struct {
	Transactions []*ledger.PointsTransaction `json:"transactions"`
	PageInfo     *pagination.PageInfo        `json:"page_info"`
}

// Issue is one inconsistency found while replaying a user's log.
type Issue struct {
	Sequence      int64  `json:"sequence,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Problem       string `json:"problem"`
}

type Report struct {
	UserID       string  `json:"user_id"`
	Transactions int     `json:"transactions"`
	Available    int64   `json:"available_points"`
	Replayed     int64   `json:"replayed_points"`
	Valid        bool    `json:"valid"`
	Issues       []Issue `json:"issues,omitempty"`
}

func (r *Report) flag(row *ledger.PointsTransaction, problem string) {
	issue := Issue{Problem: problem}
	if row != nil {
		issue.Sequence = row.Sequence
		issue.TransactionID = row.ID
	}
	r.Issues = append(r.Issues, issue)
}
