package option

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption decorates a query. It has the gorm scope signature so options can
// be passed to Scopes directly.
type QueryOption func(db *gorm.DB) *gorm.DB

// LockingUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (sqlite)
// drop the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// WithLimit caps the number of rows. A non-positive limit leaves the query
// unbounded.
func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}
