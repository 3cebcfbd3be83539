// Package event defines the closed set of domain events that move points.
//
// Each transaction type has exactly one Go type carrying only the fields it
// needs.
package event

import (
	"strings"

	"sundayschool-points/pkg/errutil"
)

type TransactionType string

const (
	ActivityCompletion  TransactionType = "activity_completion"
	ActivityRevocation  TransactionType = "activity_revocation"
	Attendance          TransactionType = "attendance"
	TripParticipation   TransactionType = "trip_participation"
	TeacherAdjustment   TransactionType = "teacher_adjustment"
	StoreOrderPending   TransactionType = "store_order_pending"
	StoreOrderApproved  TransactionType = "store_order_approved"
	StoreOrderCancelled TransactionType = "store_order_cancelled"
	StoreOrderRejected  TransactionType = "store_order_rejected"
	AdminAdjustment     TransactionType = "admin_adjustment"
)

var transactionTypes = []TransactionType{
	ActivityCompletion,
	ActivityRevocation,
	Attendance,
	TripParticipation,
	TeacherAdjustment,
	StoreOrderPending,
	StoreOrderApproved,
	StoreOrderCancelled,
	StoreOrderRejected,
	AdminAdjustment,
}

func (t TransactionType) String() string {
	return string(t)
}

func (t TransactionType) Valid() bool {
	for _, v := range transactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Types returns every transaction type in declaration order.
func Types() []TransactionType {
	out := make([]TransactionType, len(transactionTypes))
	copy(out, transactionTypes)
	return out
}

type Category string

const (
	CategoryActivity    Category = "activity"
	CategoryAttendance  Category = "attendance"
	CategoryTrips       Category = "trips"
	CategoryAdjustments Category = "adjustments"
	CategoryStore       Category = "store"
)

// Category groups transaction types for reporting.
func (t TransactionType) Category() Category {
	switch t {
	case ActivityCompletion, ActivityRevocation:
		return CategoryActivity
	case Attendance:
		return CategoryAttendance
	case TripParticipation:
		return CategoryTrips
	case TeacherAdjustment, AdminAdjustment:
		return CategoryAdjustments
	case StoreOrderPending, StoreOrderApproved, StoreOrderCancelled, StoreOrderRejected:
		return CategoryStore
	default:
		return ""
	}
}

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
	StatusAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusExcused, StatusAbsent:
		return true
	default:
		return false
	}
}

var (
	ErrUnsupportedEvent = errutil.BadRequest("unsupported event type", nil)
	ErrMissingNote      = errutil.ValidationFailed("a justification note is required", nil)
	ErrMissingReference = errutil.ValidationFailed("event reference id is required", nil)
	ErrInvalidStatus    = errutil.ValidationFailed("invalid attendance status", nil)
	ErrInvalidPoints    = errutil.ValidationFailed("invalid points value", nil)
)

// Event is implemented only by the types in this package.
type Event interface {
	Type() TransactionType
	// Reference is the id of the originating entity, empty when there is none.
	Reference() string
	// Validate checks the event on its own, before any store access.
	Validate() error
	sealed()
}

type AttendanceMarked struct {
	AttendanceID string
	Status       AttendanceStatus
}

type TripJoined struct {
	TripID string
}

type ActivityCompleted struct {
	ActivityID string
	Points     int64
}

type ActivityRevoked struct {
	ActivityID string
}

type TeacherAdjusted struct {
	Points int64
	Notes  string
}

type AdminAdjusted struct {
	Points int64
	Notes  string
}

type OrderPlaced struct {
	OrderID string
	Points  int64
}

type OrderApproved struct {
	OrderID string
}

type OrderCancelled struct {
	OrderID string
}

type OrderRejected struct {
	OrderID string
}

func (AttendanceMarked) Type() TransactionType  { return Attendance }
func (TripJoined) Type() TransactionType        { return TripParticipation }
func (ActivityCompleted) Type() TransactionType { return ActivityCompletion }
func (ActivityRevoked) Type() TransactionType   { return ActivityRevocation }
func (TeacherAdjusted) Type() TransactionType   { return TeacherAdjustment }
func (AdminAdjusted) Type() TransactionType     { return AdminAdjustment }
func (OrderPlaced) Type() TransactionType       { return StoreOrderPending }
func (OrderApproved) Type() TransactionType     { return StoreOrderApproved }
func (OrderCancelled) Type() TransactionType    { return StoreOrderCancelled }
func (OrderRejected) Type() TransactionType     { return StoreOrderRejected }

func (e AttendanceMarked) Reference() string  { return e.AttendanceID }
func (e TripJoined) Reference() string        { return e.TripID }
func (e ActivityCompleted) Reference() string { return e.ActivityID }
func (e ActivityRevoked) Reference() string   { return e.ActivityID }
func (TeacherAdjusted) Reference() string     { return "" }
func (AdminAdjusted) Reference() string       { return "" }
func (e OrderPlaced) Reference() string       { return e.OrderID }
func (e OrderApproved) Reference() string     { return e.OrderID }
func (e OrderCancelled) Reference() string    { return e.OrderID }
func (e OrderRejected) Reference() string     { return e.OrderID }

func (AttendanceMarked) sealed()  {}
func (TripJoined) sealed()        {}
func (ActivityCompleted) sealed() {}
func (ActivityRevoked) sealed()   {}
func (TeacherAdjusted) sealed()   {}
func (AdminAdjusted) sealed()     {}
func (OrderPlaced) sealed()       {}
func (OrderApproved) sealed()     {}
func (OrderCancelled) sealed()    {}
func (OrderRejected) sealed()     {}

func (e AttendanceMarked) Validate() error {
	if err := requireRef("attendance_id", e.AttendanceID); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return invalid(ErrInvalidStatus, "status", string(e.Status))
	}
	return nil
}

func (e TripJoined) Validate() error {
	return requireRef("trip_id", e.TripID)
}

func (e ActivityCompleted) Validate() error {
	if err := requireRef("activity_id", e.ActivityID); err != nil {
		return err
	}
	if e.Points < 0 {
		return invalid(ErrInvalidPoints, "points", "must not be negative")
	}
	return nil
}

func (e ActivityRevoked) Validate() error {
	return requireRef("activity_id", e.ActivityID)
}

func (e TeacherAdjusted) Validate() error {
	return requireNote(e.Notes)
}

func (e AdminAdjusted) Validate() error {
	return requireNote(e.Notes)
}

func (e OrderPlaced) Validate() error {
	if err := requireRef("order_id", e.OrderID); err != nil {
		return err
	}
	if e.Points <= 0 {
		return invalid(ErrInvalidPoints, "points", "must be positive")
	}
	return nil
}

func (e OrderApproved) Validate() error  { return requireRef("order_id", e.OrderID) }
func (e OrderCancelled) Validate() error { return requireRef("order_id", e.OrderID) }
func (e OrderRejected) Validate() error  { return requireRef("order_id", e.OrderID) }

// IdempotencyKey derives "<type>:<entity id>". The ledger scopes it to the
// user, so students sharing a trip or activity each get their own row.
// Events without an entity have no natural key.
func IdempotencyKey(e Event) string {
	ref := strings.TrimSpace(e.Reference())
	if ref == "" {
		return ""
	}
	return e.Type().String() + ":" + ref
}

// IsOrderEvent reports whether e drives the store-order state machine.
func IsOrderEvent(e Event) bool {
	switch e.(type) {
	case OrderPlaced, OrderApproved, OrderCancelled, OrderRejected:
		return true
	default:
		return false
	}
}

func requireNote(notes string) error {
	if strings.TrimSpace(notes) == "" {
		return ErrMissingNote
	}
	return nil
}

func requireRef(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(ErrMissingReference, field, "required")
	}
	return nil
}

func invalid(sentinel error, field, msg string) error {
	be := sentinel.(errutil.BaseError)
	return be.With(errutil.WithDetails(errutil.Detail{Field: field, Message: msg}))
}
