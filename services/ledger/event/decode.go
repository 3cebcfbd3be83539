package event

import "strings"

// Payload is the flat wire shape of an event as posted by the portal.
type Payload struct {
	Type         string `json:"type" binding:"required"`
	AttendanceID string `json:"attendance_id,omitempty"`
	Status       string `json:"status,omitempty"`
	TripID       string `json:"trip_id,omitempty"`
	ActivityID   string `json:"activity_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	Points       int64  `json:"points,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Decode maps a payload onto its typed event. Fields that do not belong to the
// type are ignored.
func Decode(p Payload) (Event, error) {
	switch TransactionType(strings.TrimSpace(p.Type)) {
	case Attendance:
		return AttendanceMarked{AttendanceID: p.AttendanceID, Status: AttendanceStatus(strings.ToLower(p.Status))}, nil
	case TripParticipation:
		return TripJoined{TripID: p.TripID}, nil
	case ActivityCompletion:
		return ActivityCompleted{ActivityID: p.ActivityID, Points: p.Points}, nil
	case ActivityRevocation:
		return ActivityRevoked{ActivityID: p.ActivityID}, nil
	case TeacherAdjustment:
		return TeacherAdjusted{Points: p.Points, Notes: p.Notes}, nil
	case AdminAdjustment:
		return AdminAdjusted{Points: p.Points, Notes: p.Notes}, nil
	case StoreOrderPending:
		return OrderPlaced{OrderID: p.OrderID, Points: p.Points}, nil
	case StoreOrderApproved:
		return OrderApproved{OrderID: p.OrderID}, nil
	case StoreOrderCancelled:
		return OrderCancelled{OrderID: p.OrderID}, nil
	case StoreOrderRejected:
		return OrderRejected{OrderID: p.OrderID}, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}
