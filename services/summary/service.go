package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/db/option"
	"sundayschool-points/pkg/db/pagination"
	"sundayschool-points/pkg/errutil"
	"sundayschool-points/pkg/repository"
	"sundayschool-points/services/ledger"
	"sundayschool-points/services/ledger/event"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultRecentLimit    = 10
	defaultMaxRecentLimit = 100
	defaultMaxLeaderboard = 100

	verifyBatchSize = 500
)

// Service is the read side of the ledger. Nothing here writes.
type Service struct {
	db     *gorm.DB
	tracer trace.Tracer

	balances     repository.Repository[ledger.StudentPointsBalance]
	transactions repository.Repository[ledger.PointsTransaction]

	recentLimit    int
	maxRecentLimit int
	maxLeaderboard int
}

type ServiceParams struct {
	fx.In
	DB             *gorm.DB
	Config         *config.Config
	TracerProvider trace.TracerProvider `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	tp := p.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	pts := p.Config.Points
	return &Service{
		db:     p.DB,
		tracer: tp.Tracer("sundayschool-points/services/summary"),

		balances:     repository.ProvideStore[ledger.StudentPointsBalance](p.DB),
		transactions: repository.ProvideStore[ledger.PointsTransaction](p.DB),

		recentLimit:    orDefault(pts.RecentLimit, defaultRecentLimit),
		maxRecentLimit: orDefault(pts.MaxRecentLimit, defaultMaxRecentLimit),
		maxLeaderboard: orDefault(pts.MaxLeaderboard, defaultMaxLeaderboard),
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.recentLimit
	}
	return min(n, s.maxRecentLimit)
}

// GetBalance returns the user's balance, or a zero balance for a user that
// has never been awarded anything.
func (s *Service) GetBalance(ctx context.Context, userID string) (*ledger.StudentPointsBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}

	bal, err := s.balances.FindOne(ctx, &ledger.StudentPointsBalance{UserID: userID})
	if err != nil {
		return nil, errutil.Internal("failed to load balance", err)
	}
	if bal == nil {
		return &ledger.StudentPointsBalance{UserID: userID}, nil
	}
	return bal, nil
}

// GetRecentTransactions returns the newest rows of the user's log first.
func (s *Service) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]*ledger.PointsTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}

	rows, err := s.transactions.Find(ctx,
		&ledger.PointsTransaction{UserID: userID},
		newestFirst,
		option.WithLimit(s.limit(limit)),
	)
	if err != nil {
		return nil, errutil.Internal("failed to load transactions", err)
	}
	return rows, nil
}

// ListTransactions pages through the user's log, newest first. The cursor
// is the next_cursor of the previous page.
func (s *Service) ListTransactions(ctx context.Context, userID, cursor string, limit int) (*TransactionPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	limit = s.limit(limit)

	opts := []func(*gorm.DB) *gorm.DB{newestFirst, option.WithLimit(limit + 1)}
	if cursor != "" {
		c, err := pagination.DecodeCursor(cursor)
		if err != nil || c.Sequence <= 0 {
			return nil, ErrInvalidCursor
		}
		seq := c.Sequence
		opts = append(opts, func(db *gorm.DB) *gorm.DB {
			return db.Where("sequence < ?", seq)
		})
	}

	var rows []*ledger.PointsTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(opts...).
		Find(&rows).Error
	if err != nil {
		return nil, errutil.Internal("failed to load transactions", err)
	}

	page, info := pagination.BuildCursorPageInfo(rows, limit, func(row *ledger.PointsTransaction) string {
		next, _ := pagination.EncodeCursor(pagination.Cursor{ID: row.ID, Sequence: row.Sequence})
		return next
	})
	return &TransactionPage{Transactions: page, PageInfo: info}, nil
}

// GetTotals sums the user's log by category, optionally only rows created at
// or after since.
func (s *Service) GetTotals(ctx context.Context, userID string, since *time.Time) (*Totals, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}

	type typeSum struct {
		Type   event.TransactionType
		Points int64
	}

	q := s.db.WithContext(ctx).
		Model(&ledger.PointsTransaction{}).
		Select("type, COALESCE(SUM(points), 0) AS points").
		Where("user_id = ?", userID).
		Group("type")
	if since != nil {
		q = q.Where("created_at >= ?", since.UTC())
	}

	var sums []typeSum
	if err := q.Scan(&sums).Error; err != nil {
		return nil, errutil.Internal("failed to sum transactions", err)
	}

	totals := &Totals{UserID: userID, Since: since, ByType: map[event.TransactionType]int64{}}
	for _, sum := range sums {
		totals.add(sum.Type, sum.Points)
	}
	return totals, nil
}

// Leaderboard ranks a church's students by lifetime earnings.
func (s *Service) Leaderboard(ctx context.Context, churchID string, limit int) ([]LeaderboardEntry, error) {
	if strings.TrimSpace(churchID) == "" {
		return nil, ErrChurchRequired
	}
	if limit <= 0 || limit > s.maxLeaderboard {
		limit = s.maxLeaderboard
	}

	var balances []ledger.StudentPointsBalance
	err := s.db.WithContext(ctx).
		Where("church_id = ?", churchID).
		Order("total_earned DESC").
		Order("user_id ASC").
		Scopes(option.WithLimit(limit)).
		Find(&balances).Error
	if err != nil {
		return nil, errutil.Internal("failed to load leaderboard", err)
	}

	out := make([]LeaderboardEntry, 0, len(balances))
	for i, b := range balances {
		out = append(out, LeaderboardEntry{
			Rank:            i + 1,
			UserID:          b.UserID,
			TotalEarned:     b.TotalEarned,
			AvailablePoints: b.AvailablePoints,
		})
	}
	return out, nil
}

// Verify replays the user's log and checks it against itself and against the
// balance row: sequence numbers, the hash chain, every balance_after and the
// final totals.
func (s *Service) Verify(ctx context.Context, userID string) (*Report, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}

	ctx, span := s.tracer.Start(ctx, "summary.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	bal, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &Report{UserID: userID, Available: bal.AvailablePoints}
	var (
		lastSeq  int64
		lastHash = ledger.GenesisHash
		running  int64
	)

	for {
		var batch []*ledger.PointsTransaction
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND sequence > ?", userID, lastSeq).
			Order("sequence ASC").
			Limit(verifyBatchSize).
			Find(&batch).Error
		if err != nil {
			return nil, errutil.Internal("failed to load transactions", err)
		}

		for _, row := range batch {
			report.Transactions++
			if row.Sequence != lastSeq+1 {
				report.flag(row, fmt.Sprintf("sequence gap after %d", lastSeq))
			}
			if row.PreviousHash != lastHash {
				report.flag(row, "previous_hash does not match the prior row")
			}
			if row.GenerateHash() != row.Hash {
				report.flag(row, "hash does not match row content")
			}

			running += row.Points
			if row.BalanceAfter != running {
				report.flag(row, fmt.Sprintf("balance_after %d, replay gives %d", row.BalanceAfter, running))
			}

			lastSeq = row.Sequence
			lastHash = row.Hash
		}

		if len(batch) < verifyBatchSize {
			break
		}
	}

	report.Replayed = running
	if running != bal.AvailablePoints {
		report.flag(nil, fmt.Sprintf("balance has %d available, replay gives %d", bal.AvailablePoints, running))
	}
	if bal.TotalEarned-bal.TotalDeducted != running {
		report.flag(nil, "total_earned - total_deducted does not match the log")
	}
	if report.Transactions > 0 && bal.LastHash != lastHash {
		report.flag(nil, "balance last_hash does not match the newest row")
	}
	report.Valid = len(report.Issues) == 0

	if !report.Valid {
		sc := span.SpanContext()
		zap.L().Warn("points ledger verification failed",
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("user_id", userID),
			zap.Int("issues", len(report.Issues)),
		)
	}
	return report, nil
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("sequence DESC")
}
