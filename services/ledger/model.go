package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"sundayschool-points/services/ledger/event"

	"gorm.io/datatypes"
)

// GenesisHash is the previous_hash of a user's first transaction.
const GenesisHash = "GENESIS"

// PointsTransaction is one immutable line of a user's points log. Points is
// the change applied to the balance's available points. Idempotency keys are
// unique per user.
type PointsTransaction struct {
	ID             string                `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ChurchID       string                `gorm:"column:church_id;type:varchar(64);index;not null" json:"church_id"`
	UserID         string                `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_points_tx_user_seq,priority:1;uniqueIndex:idx_points_tx_user_key,priority:1" json:"user_id"`
	Sequence       int64                 `gorm:"column:sequence;not null;uniqueIndex:idx_points_tx_user_seq,priority:2" json:"sequence"`
	Type           event.TransactionType `gorm:"column:type;type:varchar(40);index;not null" json:"type"`
	Points         int64                 `gorm:"column:points;not null" json:"points"`
	BalanceAfter   int64                 `gorm:"column:balance_after;not null" json:"balance_after"`
	Deficit        int64                 `gorm:"column:deficit;not null" json:"deficit,omitempty"`
	Notes          *string               `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ActivityID     *string               `gorm:"column:activity_id;type:varchar(64);index" json:"activity_id,omitempty"`
	AttendanceID   *string               `gorm:"column:attendance_id;type:varchar(64)" json:"attendance_id,omitempty"`
	TripID         *string               `gorm:"column:trip_id;type:varchar(64)" json:"trip_id,omitempty"`
	OrderID        *string               `gorm:"column:order_id;type:varchar(64);index" json:"order_id,omitempty"`
	CreatedBy      *string               `gorm:"column:created_by;type:varchar(64)" json:"created_by,omitempty"`
	IdempotencyKey *string               `gorm:"column:idempotency_key;type:varchar(191);uniqueIndex:idx_points_tx_user_key,priority:2" json:"idempotency_key,omitempty"`
	Metadata       datatypes.JSON        `gorm:"column:metadata" json:"metadata,omitempty"`
	PreviousHash   string                `gorm:"column:previous_hash;type:varchar(64);not null" json:"previous_hash"`
	Hash           string                `gorm:"column:hash;type:varchar(64);not null" json:"hash"`
	CreatedAt      time.Time             `gorm:"column:created_at;index" json:"created_at"`
}

func (PointsTransaction) TableName() string {
	return "points_transactions"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *PointsTransaction) HashFields() map[string]string {
	return map[string]string{
		"id":              m.ID,
		"church_id":       m.ChurchID,
		"user_id":         m.UserID,
		"sequence":        fmt.Sprintf("%d", m.Sequence),
		"type":            string(m.Type),
		"points":          fmt.Sprintf("%d", m.Points),
		"balance_after":   fmt.Sprintf("%d", m.BalanceAfter),
		"deficit":         fmt.Sprintf("%d", m.Deficit),
		"notes":           deref(m.Notes),
		"activity_id":     deref(m.ActivityID),
		"attendance_id":   deref(m.AttendanceID),
		"trip_id":         deref(m.TripID),
		"order_id":        deref(m.OrderID),
		"created_by":      deref(m.CreatedBy),
		"idempotency_key": deref(m.IdempotencyKey),
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":   m.PreviousHash,
		"metadata":        canonicalJSON(m.Metadata),
	}
}

// canonicalJSON re-encodes raw with sorted keys and no insignificant
// whitespace, so the hash does not depend on how the database stored it.
func canonicalJSON(raw datatypes.JSON) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	if v == nil {
		return ""
	}

	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func (m *PointsTransaction) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// StudentPointsBalance is the per-user aggregate of the log.
type StudentPointsBalance struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	UserID          string    `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null" json:"user_id"`
	ChurchID        string    `gorm:"column:church_id;type:varchar(64);index;not null" json:"church_id"`
	AvailablePoints int64     `gorm:"column:available_points;not null" json:"available_points"`
	SuspendedPoints int64     `gorm:"column:suspended_points;not null" json:"suspended_points"`
	UsedPoints      int64     `gorm:"column:used_points;not null" json:"used_points"`
	TotalEarned     int64     `gorm:"column:total_earned;not null;index" json:"total_earned"`
	TotalDeducted   int64     `gorm:"column:total_deducted;not null" json:"total_deducted"`
	DeficitPoints   int64     `gorm:"column:deficit_points;not null" json:"deficit_points"`
	Version         int64     `gorm:"column:version;not null" json:"version"`
	LastHash        string    `gorm:"column:last_hash;type:varchar(64)" json:"-"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (StudentPointsBalance) TableName() string {
	return "student_points_balances"
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderApproved || s == OrderCancelled || s == OrderRejected
}

// PointsOrderHold tracks the points suspended for one store order. At every
// point HeldPoints + UsedPoints + ReturnedPoints + RevokedPoints equals
// OriginalPoints.
type PointsOrderHold struct {
	OrderID        string      `gorm:"column:order_id;primaryKey;type:varchar(64)" json:"order_id"`
	UserID         string      `gorm:"column:user_id;type:varchar(64);index:idx_points_hold_user_status,priority:1;not null" json:"user_id"`
	ChurchID       string      `gorm:"column:church_id;type:varchar(64);not null" json:"church_id"`
	Status         OrderStatus `gorm:"column:status;type:varchar(16);index:idx_points_hold_user_status,priority:2;not null" json:"status"`
	OriginalPoints int64       `gorm:"column:original_points;not null" json:"original_points"`
	HeldPoints     int64       `gorm:"column:held_points;not null" json:"held_points"`
	UsedPoints     int64       `gorm:"column:used_points;not null" json:"used_points"`
	ReturnedPoints int64       `gorm:"column:returned_points;not null" json:"returned_points"`
	RevokedPoints  int64       `gorm:"column:revoked_points;not null" json:"revoked_points"`
	CreatedAt      time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"column:updated_at" json:"updated_at"`
	ResolvedAt     *time.Time  `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

func (PointsOrderHold) TableName() string {
	return "points_order_holds"
}

// orderStatusFor maps an order event to the hold status it moves to.
func orderStatusFor(e event.Event) OrderStatus {
	switch e.(type) {
	case event.OrderPlaced:
		return OrderPending
	case event.OrderApproved:
		return OrderApproved
	case event.OrderCancelled:
		return OrderCancelled
	case event.OrderRejected:
		return OrderRejected
	default:
		return ""
	}
}
