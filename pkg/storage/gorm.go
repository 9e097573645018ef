// Package storage provides storage implementations for the ingestion pipeline.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// claimBatch bounds how many candidate rows one Claim call inspects.
const claimBatch = 16

var retryableKinds = []core.FailureKind{core.FailureTransient, core.FailureSchema}

// eligibleSQL matches PENDING jobs and FAILED jobs whose retry delay has elapsed.
const eligibleSQL = "(status = ? OR (status = ? AND failure_kind IN ? AND retries < max_retries AND (next_attempt_at IS NULL OR next_attempt_at <= ?)))"

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying connection.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the connection uses the SQLite dialect.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector.Name() == "sqlite"
}

func (s *GormStorage) isPostgres() bool {
	return s.db != nil && s.db.Dialector.Name() == "postgres"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&core.IngestionJob{},
		&core.RecipeFingerprint{},
		&core.IngestionReview{},
	)
}

func prepare(job *core.IngestionJob) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusPending
	}
	job.MaxRetries = security.ClampRetries(job.MaxRetries)
}

// Enqueue adds a job.
func (s *GormStorage) Enqueue(ctx context.Context, job *core.IngestionJob) error {
	prepare(job)
	return s.db.WithContext(ctx).Create(job).Error
}

// EnqueueIfAbsent adds a job only if no job references the same source path.
// The unique index on source_path arbitrates concurrent callers.
func (s *GormStorage) EnqueueIfAbsent(ctx context.Context, job *core.IngestionJob) error {
	prepare(job)
	err := s.db.WithContext(ctx).Create(job).Error
	if err != nil && isUniqueViolation(err) {
		return core.ErrAlreadyEnqueued
	}
	return err
}

// Claim locks the oldest eligible job for workerID. Returns nil when nothing is due.
func (s *GormStorage) Claim(ctx context.Context, workerID string, lease time.Duration) (*core.IngestionJob, error) {
	now := time.Now()

	if s.isPostgres() {
		var claimed *core.IngestionJob
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var job core.IngestionJob
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where(eligibleSQL, core.StatusPending, core.StatusFailed, retryableKinds, now).
				Order("created_at ASC").
				First(&job).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			ok, err := s.lock(tx, job.ID, workerID, now, lease, eligibleSQL, core.StatusPending, core.StatusFailed, retryableKinds, now)
			if err != nil || !ok {
				return err
			}
			claimed = &job
			return nil
		})
		if err != nil || claimed == nil {
			return nil, err
		}
		return s.GetJob(ctx, claimed.ID)
	}

	var ids []string
	err := s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Where(eligibleSQL, core.StatusPending, core.StatusFailed, retryableKinds, now).
		Order("created_at ASC").
		Limit(claimBatch).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	// Another worker may win any row between the select and the update;
	// the conditional update decides.
	for _, id := range ids {
		ok, err := s.lock(s.db.WithContext(ctx), id, workerID, now, lease, eligibleSQL, core.StatusPending, core.StatusFailed, retryableKinds, now)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.GetJob(ctx, id)
		}
	}
	return nil, nil
}

// ClaimJob locks a specific job if it is currently eligible.
func (s *GormStorage) ClaimJob(ctx context.Context, jobID, workerID string, lease time.Duration) (*core.IngestionJob, error) {
	now := time.Now()
	ok, err := s.lock(s.db.WithContext(ctx), jobID, workerID, now, lease, eligibleSQL, core.StatusPending, core.StatusFailed, retryableKinds, now)
	if err != nil || !ok {
		return nil, err
	}
	return s.GetJob(ctx, jobID)
}

// ClaimForRevision moves a NEEDS_REVIEW job into PROCESSING under workerID and
// records the reviewer's decision with the claim.
func (s *GormStorage) ClaimForRevision(ctx context.Context, jobID, workerID string, lease time.Duration, review *core.IngestionReview) (*core.IngestionJob, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.lock(tx, jobID, workerID, time.Now(), lease, "status = ?", core.StatusNeedsReview)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrInvalidTransition
		}
		return appendReview(tx, review)
	})
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, jobID)
}

// lock is the atomic claim: it succeeds only if the row still matches cond.
func (s *GormStorage) lock(db *gorm.DB, jobID, workerID string, now time.Time, lease time.Duration, cond string, args ...any) (bool, error) {
	lockUntil := now.Add(lease)
	result := db.
		Model(&core.IngestionJob{}).
		Where("id = ?", jobID).
		Where(cond, args...).
		Updates(map[string]any{
			"status":                core.StatusProcessing,
			"locked_by":             workerID,
			"locked_until":          lockUntil,
			"processing_started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Heartbeat extends the lock on a processing job.
func (s *GormStorage) Heartbeat(ctx context.Context, jobID, workerID string, lease time.Duration) error {
	result := s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Where("id = ? AND locked_by = ? AND status = ?", jobID, workerID, core.StatusProcessing).
		Update("locked_until", time.Now().Add(lease))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// ReleaseStaleClaims counts an expired lease as a transient failure of that attempt.
func (s *GormStorage) ReleaseStaleClaims(ctx context.Context) (int64, error) {
	now := time.Now()
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := func() *gorm.DB {
			return tx.Model(&core.IngestionJob{}).
				Where("status = ? AND locked_until < ?", core.StatusProcessing, now)
		}

		dead := stale().
			Where("retries + 1 >= max_retries").
			Updates(map[string]any{
				"status":        core.StatusDLQ,
				"retries":       gorm.Expr("retries + 1"),
				"failure_kind":  core.FailureTransient,
				"error_message": "worker lease expired",
				"locked_by":     "",
				"locked_until":  nil,
			})
		if dead.Error != nil {
			return dead.Error
		}

		retry := stale().
			Where("retries + 1 < max_retries").
			Updates(map[string]any{
				"status":          core.StatusFailed,
				"retries":         gorm.Expr("retries + 1"),
				"failure_kind":    core.FailureTransient,
				"next_attempt_at": now,
				"error_message":   "worker lease expired",
				"locked_by":       "",
				"locked_until":    nil,
			})
		if retry.Error != nil {
			return retry.Error
		}
		total = dead.RowsAffected + retry.RowsAffected
		return nil
	})
	return total, err
}

// Finish records the outcome of a pipeline pass. Only the worker holding the
// lock may finish a job.
func (s *GormStorage) Finish(ctx context.Context, jobID, workerID string, res *core.Resolution) error {
	return s.resolve(ctx, res, core.ErrJobNotOwned, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND locked_by = ? AND status = ?", jobID, workerID, core.StatusProcessing)
	})
}

// Resolve applies a reviewer-driven transition to a job that is still in from.
func (s *GormStorage) Resolve(ctx context.Context, jobID string, from core.JobStatus, res *core.Resolution) error {
	if !core.CanTransition(from, res.Status) {
		return core.ErrInvalidTransition
	}
	return s.resolve(ctx, res, core.ErrInvalidTransition, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND status = ?", jobID, from)
	})
}

func (s *GormStorage) resolve(ctx context.Context, res *core.Resolution, notMatched error, scope func(*gorm.DB) *gorm.DB) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if fp := res.Fingerprint; fp != nil {
			if fp.ID == "" {
				fp.ID = uuid.New().String()
			}
			if err := tx.Create(fp).Error; err != nil {
				if isUniqueViolation(err) {
					return core.ErrDuplicateFingerprint
				}
				return err
			}
		}

		result := tx.Model(&core.IngestionJob{}).
			Scopes(scope).
			Updates(resolutionUpdates(res))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notMatched
		}
		return appendReview(tx, res.Review)
	})
}

func resolutionUpdates(res *core.Resolution) map[string]any {
	updates := map[string]any{
		"status":                  res.Status,
		"retries":                 res.Retries,
		"failure_kind":            res.FailureKind,
		"next_attempt_at":         res.NextAttemptAt,
		"confidence_score":        res.Confidence,
		"error_message":           security.SanitizeErrorMessage(res.ErrorMessage),
		"recipe_id":               res.RecipeID,
		"duplicate_of_recipe_id":  res.DuplicateOf,
		"meta":                    datatypes.NewJSONType(res.Meta),
		"locked_by":               "",
		"locked_until":            nil,
		"processing_completed_at": time.Now(),
	}
	if res.ReviewerNotes != "" {
		updates["reviewer_notes"] = res.ReviewerNotes
	}
	if res.ReviewedAt != nil {
		updates["reviewed_at"] = res.ReviewedAt
	}
	return updates
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// Reprocess sends a FAILED, DLQ or REJECTED job back to PENDING with a fresh retry budget.
func (s *GormStorage) Reprocess(ctx context.Context, jobID string) error {
	result := s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Where("id = ? AND status IN ?", jobID, core.ReprocessableStatuses).
		Updates(map[string]any{
			"status":                 core.StatusPending,
			"retries":                0,
			"failure_kind":           core.FailureNone,
			"next_attempt_at":        nil,
			"error_message":          "",
			"confidence_score":       nil,
			"recipe_id":              nil,
			"duplicate_of_recipe_id": nil,
			"locked_by":              "",
			"locked_until":           nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return core.ErrJobNotFound
		}
		return core.ErrInvalidTransition
	}
	return nil
}

// UpdateSourcePath records where the source document lives after a move.
func (s *GormStorage) UpdateSourcePath(ctx context.Context, jobID, path string) error {
	return s.db.WithContext(ctx).
		Model(&core.IngestionJob{}).
		Where("id = ?", jobID).
		Update("source_path", path).Error
}

// GetJob retrieves a job by ID. Returns nil, nil if it does not exist.
func (s *GormStorage) GetJob(ctx context.Context, jobID string) (*core.IngestionJob, error) {
	var job core.IngestionJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs matching the filter, newest first, with the total count.
func (s *GormStorage) ListJobs(ctx context.Context, filter core.JobFilter) ([]*core.IngestionJob, int64, error) {
	q := s.db.WithContext(ctx).Model(&core.IngestionJob{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		q = q.Where("(id LIKE ? OR original_filename LIKE ? OR source_path LIKE ?)", search, search, search)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := security.ClampPageSize(filter.Limit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var jobs []*core.IngestionJob
	err := q.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// FindFingerprintByHash returns the fingerprint with the given hash, or nil.
func (s *GormStorage) FindFingerprintByHash(ctx context.Context, hash string) (*core.RecipeFingerprint, error) {
	var fp core.RecipeFingerprint
	err := s.db.WithContext(ctx).First(&fp, "fingerprint_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

// FindFingerprintCandidates returns fingerprints in the same cuisine within a total-time window.
func (s *GormStorage) FindFingerprintCandidates(ctx context.Context, cuisine string, minMinutes, maxMinutes int) ([]core.RecipeFingerprint, error) {
	var fps []core.RecipeFingerprint
	err := s.db.WithContext(ctx).
		Where("cuisine_normalized = ?", cuisine).
		Where("total_time_minutes BETWEEN ? AND ?", minMinutes, maxMinutes).
		Order("created_at ASC").
		Find(&fps).Error
	return fps, err
}

// appendReview inserts a review row inside tx. Reviews are never updated.
func appendReview(tx *gorm.DB, review *core.IngestionReview) error {
	if review == nil {
		return nil
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	return tx.Create(review).Error
}

// ListReviews returns a job's review history, oldest first.
func (s *GormStorage) ListReviews(ctx context.Context, jobID string) ([]core.IngestionReview, error) {
	var reviews []core.IngestionReview
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&reviews).Error
	return reviews, err
}

var _ core.Storage = (*GormStorage)(nil)
