package service

import (
	"context"
	"errors"
	"time"

	"dukapos/internal/dto"
	"dukapos/internal/model"
	"dukapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSelfDemote blocks an admin from demoting their own account.
	ErrSelfDemote = errors.New("you cannot demote your own account")
	// ErrLastAdmin blocks demoting the only remaining admin.
	ErrLastAdmin = errors.New("cannot demote the last remaining admin")
)

type UserService interface {
	List(ctx context.Context, filter dto.UserFilter) ([]dto.UserResponse, error)
	Stats(ctx context.Context) (*dto.UserStatsResponse, error)
	Promote(ctx context.Context, actorID, targetID uuid.UUID) (*dto.RoleChangeResponse, error)
	Demote(ctx context.Context, actorID, targetID uuid.UUID) (*dto.RoleChangeResponse, error)
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) List(ctx context.Context, filter dto.UserFilter) ([]dto.UserResponse, error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = userResponse(&users[i])
	}
	return out, nil
}

func (s *userService) Stats(ctx context.Context) (*dto.UserStatsResponse, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := s.repo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	customers, err := s.repo.CountByRole(ctx, model.RoleCustomer)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.CountCreatedSince(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	return &dto.UserStatsResponse{
		TotalUsers:    total,
		AdminCount:    admins,
		CustomerCount: customers,
		RecentSignups: recent,
	}, nil
}

// Promote raises a customer to admin, recording who did it and when.
// Promoting an admin is a no-op that still returns the current state.
func (s *userService) Promote(ctx context.Context, actorID, targetID uuid.UUID) (*dto.RoleChangeResponse, error) {
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if target.Role == model.RoleAdmin {
		return &dto.RoleChangeResponse{
			Message: "User is already an admin",
			User:    userResponse(target),
		}, nil
	}

	now := time.Now()
	target.Role = model.RoleAdmin
	target.PromotedByID = &actorID
	target.PromotedAt = &now
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, err
	}

	log.Info().
		Str("target_id", targetID.String()).
		Str("actor_id", actorID.String()).
		Msg("user promoted to admin")

	return &dto.RoleChangeResponse{
		Message: "User promoted to admin",
		User:    userResponse(target),
	}, nil
}

// Demote lowers an admin back to customer. Two guards: an admin cannot demote
// themselves, and the last remaining admin cannot be demoted — the system
// must never end up without one.
func (s *userService) Demote(ctx context.Context, actorID, targetID uuid.UUID) (*dto.RoleChangeResponse, error) {
	if actorID == targetID {
		return nil, ErrSelfDemote
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if target.Role != model.RoleAdmin {
		return &dto.RoleChangeResponse{
			Message: "User is not an admin",
			User:    userResponse(target),
		}, nil
	}

	adminCount, err := s.repo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if adminCount <= 1 {
		return nil, ErrLastAdmin
	}

	target.Role = model.RoleCustomer
	target.PromotedByID = nil
	target.PromotedAt = nil
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, err
	}

	log.Info().
		Str("target_id", targetID.String()).
		Str("actor_id", actorID.String()).
		Msg("admin demoted to customer")

	return &dto.RoleChangeResponse{
		Message: "Admin demoted to customer",
		User:    userResponse(target),
	}, nil
}
