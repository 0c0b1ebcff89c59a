package services

import (
	"github.com/google/uuid"
	"github.com/techagentng/achat/db"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
)

// FollowService maintains the follow graph. Edges are idempotent: following
// someone twice is the same as following once.
type FollowService interface {
	Follow(followerID, followeeID uuid.UUID) error
	Unfollow(followerID, followeeID uuid.UUID) error
	IsFollowing(followerID, followeeID uuid.UUID) (bool, error)
	Followers(userID uuid.UUID) ([]models.UserResponse, error)
	Following(userID uuid.UUID) ([]models.UserResponse, error)
	Counts(userID uuid.UUID) (models.FollowCounts, error)
}

type followService struct {
	followRepo db.FollowRepository
	authRepo   db.AuthRepository
}

func NewFollowService(followRepo db.FollowRepository, authRepo db.AuthRepository) FollowService {
	return &followService{
		followRepo: followRepo,
		authRepo:   authRepo,
	}
}

func (f *followService) Follow(followerID, followeeID uuid.UUID) error {
	if followerID == followeeID {
		return errs.ErrBadRequest
	}
	if _, err := f.authRepo.FindUserByID(followeeID); err != nil {
		return errs.ErrNotFound
	}
	return f.followRepo.Follow(followerID, followeeID)
}

func (f *followService) Unfollow(followerID, followeeID uuid.UUID) error {
	return f.followRepo.Unfollow(followerID, followeeID)
}

func (f *followService) IsFollowing(followerID, followeeID uuid.UUID) (bool, error) {
	return f.followRepo.IsFollowing(followerID, followeeID)
}

func (f *followService) Followers(userID uuid.UUID) ([]models.UserResponse, error) {
	ids, err := f.followRepo.Followers(userID)
	if err != nil {
		return nil, err
	}
	return f.resolve(ids)
}

func (f *followService) Following(userID uuid.UUID) ([]models.UserResponse, error) {
	ids, err := f.followRepo.Following(userID)
	if err != nil {
		return nil, err
	}
	return f.resolve(ids)
}

func (f *followService) Counts(userID uuid.UUID) (models.FollowCounts, error) {
	return f.followRepo.Counts(userID)
}

func (f *followService) resolve(ids []uuid.UUID) ([]models.UserResponse, error) {
	users, err := f.authRepo.FindUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserResponse{
			ID:           u.ID.String(),
			Fullname:     u.Fullname,
			Username:     u.Username,
			Email:        u.Email,
			ThumbNailURL: u.ThumbNailURL,
			About:        u.About,
			PublicKey:    u.PublicKey,
		})
	}
	return out, nil
}
