package services

import (
	"context"
	"fmt"
	"time"

	"confidential-market/internal/models"
	"confidential-market/internal/repository"

	"github.com/google/uuid"
)

// SubmissionPolicy bounds how often a participant may submit to one market.
type SubmissionPolicy int

const (
	SingleSubmission SubmissionPolicy = iota
	MultiSubmission
)

// PolicyFor returns the submission policy of a variant.
func PolicyFor(v models.MarketVariant) SubmissionPolicy {
	if v == models.VariantEnergy {
		return MultiSubmission
	}
	return SingleSubmission
}

// ParticipationLedger keeps one stake and claim record per (market, participant).
// Methods take the repository so they run inside the caller's transaction.
type ParticipationLedger struct{}

func NewParticipationLedger() *ParticipationLedger {
	return &ParticipationLedger{}
}

// Admit checks the submission policy before any side effect. It returns the
// existing participation, or nil for a first submission.
func (l *ParticipationLedger) Admit(
	ctx context.Context,
	repo *repository.Repository,
	marketID, participant string,
	policy SubmissionPolicy,
) (*models.Participation, error) {
	p, err := repo.GetParticipation(ctx, marketID, participant)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	if policy == SingleSubmission && p.Contributed {
		return nil, ErrAlreadySubmitted
	}
	return p, nil
}

// RecordSubmission appends a submission and creates or grows the participation.
// existing must be the value returned by Admit.
func (l *ParticipationLedger) RecordSubmission(
	ctx context.Context,
	repo *repository.Repository,
	existing *models.Participation,
	marketID, participant string,
	category models.Category,
	stake int64,
	inputHandle string,
) (*models.Participation, error) {
	p := existing
	if p == nil {
		c := category
		p = &models.Participation{
			MarketID:    marketID,
			Participant: participant,
			Category:    &c,
		}
	}
	p.Contributed = true
	p.Stake += stake
	p.Submissions++

	if err := repo.SaveParticipation(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save participation: %w", err)
	}
	sub := &models.Submission{
		ID:          uuid.New(),
		MarketID:    marketID,
		Participant: participant,
		Category:    category,
		Stake:       stake,
		InputHandle: inputHandle,
	}
	if err := repo.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	return p, nil
}

// Get returns the participation or ErrNotParticipated.
func (l *ParticipationLedger) Get(ctx context.Context, repo *repository.Repository, marketID, participant string) (*models.Participation, error) {
	p, err := repo.GetParticipation(ctx, marketID, participant)
	if repository.IsNotFound(err) {
		return nil, ErrNotParticipated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return p, nil
}

// MarkClaimed sets the claimed flag exactly once.
func (l *ParticipationLedger) MarkClaimed(
	ctx context.Context,
	repo *repository.Repository,
	marketID, participant string,
	kind models.ClaimKind,
	amount int64,
	at time.Time,
) error {
	ok, err := repo.MarkClaimed(ctx, marketID, participant, kind, amount, at)
	if err != nil {
		return fmt.Errorf("failed to mark claimed: %w", err)
	}
	if !ok {
		if _, err := l.Get(ctx, repo, marketID, participant); err != nil {
			return err
		}
		return ErrAlreadyClaimed
	}
	return nil
}

// StakeInCategory sums the participant's stake submitted under category.
func (l *ParticipationLedger) StakeInCategory(
	ctx context.Context,
	repo *repository.Repository,
	marketID, participant string,
	category models.Category,
) (int64, error) {
	stake, err := repo.SumStakeInCategory(ctx, marketID, participant, category)
	if err != nil {
		return 0, fmt.Errorf("failed to sum stake: %w", err)
	}
	return stake, nil
}
