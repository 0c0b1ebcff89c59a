package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FollowRepository interface {
	Follow(followerID, followeeID uuid.UUID) error
	Unfollow(followerID, followeeID uuid.UUID) error
	IsFollowing(followerID, followeeID uuid.UUID) (bool, error)
	Followers(userID uuid.UUID) ([]uuid.UUID, error)
	Following(userID uuid.UUID) ([]uuid.UUID, error)
	Counts(userID uuid.UUID) (models.FollowCounts, error)
}

type followRepo struct {
	DB *gorm.DB
}

func NewFollowRepo(db *GormDB) FollowRepository {
	return &followRepo{db.DB}
}

func (f *followRepo) Follow(followerID, followeeID uuid.UUID) error {
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	err := f.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
	if err != nil {
		return errors.Wrap(err, "failed to follow user")
	}
	return nil
}

func (f *followRepo) Unfollow(followerID, followeeID uuid.UUID) error {
	err := f.DB.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to unfollow user")
	}
	return nil
}

func (f *followRepo) IsFollowing(followerID, followeeID uuid.UUID) (bool, error) {
	var count int64
	err := f.DB.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check follow edge")
	}
	return count > 0, nil
}

func (f *followRepo) Followers(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := f.DB.Model(&models.Follow{}).Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list followers")
	}
	return ids, nil
}

func (f *followRepo) Following(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := f.DB.Model(&models.Follow{}).Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list following")
	}
	return ids, nil
}

func (f *followRepo) Counts(userID uuid.UUID) (models.FollowCounts, error) {
	var counts models.FollowCounts
	err := f.DB.Model(&models.Follow{}).Where("followee_id = ?", userID).
		Count(&counts.Followers).Error
	if err != nil {
		return counts, errors.Wrap(err, "failed to count followers")
	}
	err = f.DB.Model(&models.Follow{}).Where("follower_id = ?", userID).
		Count(&counts.Following).Error
	if err != nil {
		return counts, errors.Wrap(err, "failed to count following")
	}
	return counts, nil
}
