package service

import (
	"context"
	"fmt"
	"math"

	"cleanops/internal/config"
	"cleanops/internal/domain"
	"cleanops/internal/models"
)

// ChecklistService tracks per-booking task completion.
type ChecklistService struct {
	repo domain.ChecklistRepository
	now  nowFunc
}

func NewChecklistService(repo domain.ChecklistRepository) *ChecklistService {
	return &ChecklistService{repo: repo, now: systemNow}
}

// ComputeProgress rounds 100*completed/total to the nearest integer.
func ComputeProgress(total, completed int) models.ChecklistProgress {
	p := models.ChecklistProgress{Total: total, Completed: completed}
	if total > 0 {
		p.Percentage = int(math.Round(100 * float64(completed) / float64(total)))
	}
	return p
}

// Initialize creates completion rows for the selected items. Repeated calls
// never duplicate rows; the number of rows created is returned.
func (s *ChecklistService) Initialize(ctx context.Context, bookingID int64, itemIDs []int64) (int64, error) {
	n, err := s.repo.InitializeChecklist(ctx, bookingID, itemIDs)
	return n, storeError(err)
}

func (s *ChecklistService) Toggle(ctx context.Context, completionID int64, completed bool) (*models.ChecklistCompletion, error) {
	if err := s.repo.SetCompletionState(ctx, completionID, completed, s.now()); err != nil {
		return nil, storeError(err)
	}
	c, err := s.repo.GetChecklistCompletion(ctx, completionID)
	return c, storeError(err)
}

// Rate stores a 1-5 score. Rating an item that is not completed yet is allowed.
func (s *ChecklistService) Rate(ctx context.Context, completionID int64, rating int, notes *string) (*models.ChecklistCompletion, error) {
	if rating < 1 || rating > 5 {
		return nil, invalidInput("rating must be between 1 and 5, got %d", rating)
	}
	if err := s.repo.RateCompletion(ctx, completionID, rating, notes); err != nil {
		return nil, storeError(err)
	}
	c, err := s.repo.GetChecklistCompletion(ctx, completionID)
	return c, storeError(err)
}

func (s *ChecklistService) Progress(ctx context.Context, bookingID int64) (models.ChecklistProgress, error) {
	counts, err := s.repo.GetChecklistCounts(ctx, bookingID)
	if err != nil {
		return models.ChecklistProgress{}, storeError(err)
	}
	return ComputeProgress(counts.Total, counts.Completed), nil
}

// IsComplete is true when every item, required or not, is done.
func (s *ChecklistService) IsComplete(ctx context.Context, bookingID int64) (bool, error) {
	p, err := s.Progress(ctx, bookingID)
	if err != nil {
		return false, err
	}
	return p.Total > 0 && p.Percentage == 100 && p.Completed == p.Total, nil
}

// RequiredComplete is true when every required item is done.
func (s *ChecklistService) RequiredComplete(ctx context.Context, bookingID int64) (bool, error) {
	counts, err := s.repo.GetChecklistCounts(ctx, bookingID)
	if err != nil {
		return false, storeError(err)
	}
	return counts.Total > 0 && counts.RequiredCompleted == counts.RequiredTotal, nil
}

// Gate applies the configured completion rule and returns ErrChecklistIncomplete
// when it does not hold.
func (s *ChecklistService) Gate(ctx context.Context, bookingID int64, mode string) error {
	counts, err := s.repo.GetChecklistCounts(ctx, bookingID)
	if err != nil {
		return storeError(err)
	}
	p := ComputeProgress(counts.Total, counts.Completed)

	ok := counts.Total > 0
	if mode == config.GateAll {
		ok = ok && counts.Completed == counts.Total
	} else {
		ok = ok && counts.RequiredCompleted == counts.RequiredTotal
	}
	if !ok {
		return fmt.Errorf("%w: %d of %d items done (%d%%), %d of %d required",
			ErrChecklistIncomplete, p.Completed, p.Total, p.Percentage, counts.RequiredCompleted, counts.RequiredTotal)
	}
	return nil
}
