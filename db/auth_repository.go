package db

import (
	"log"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"
)

type AuthRepository interface {
	CreateUser(user *models.User) (*models.User, error)
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id uuid.UUID) (*models.User, error)
	FindUsersByIDs(ids []uuid.UUID) ([]models.User, error)
	IsEmailExist(email string) error
	UpdateUserProfile(userID uuid.UUID, updates map[string]interface{}) error
	UpdateUserImage(userID uuid.UUID, thumbNailURL string) error
	SetResetToken(email, token string) error
	FindUserByResetToken(token string) (*models.User, error)
	UpdatePassword(userID uuid.UUID, hashedPassword string) error
	AddToBlacklist(token string) error
	IsTokenInBlacklist(token string) bool
}

type authRepo struct {
	DB *gorm.DB
}

func NewAuthRepo(db *GormDB) AuthRepository {
	return &authRepo{db.DB}
}

func (a *authRepo) CreateUser(user *models.User) (*models.User, error) {
	if err := a.DB.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (a *authRepo) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) FindUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := a.DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUsersByIDs resolves participant display data. Missing ids are simply
// absent from the result, never an error.
func (a *authRepo) FindUsersByIDs(ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := a.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to resolve users")
	}
	return users, nil
}

func (a *authRepo) IsEmailExist(email string) error {
	var count int64
	if err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("duplicate key value violates unique constraint: email exists")
	}
	return nil
}

func (a *authRepo) UpdateUserProfile(userID uuid.UUID, updates map[string]interface{}) error {
	err := a.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
	if err != nil {
		return errors.Wrap(err, "failed to update profile")
	}
	return nil
}

func (a *authRepo) UpdateUserImage(userID uuid.UUID, thumbNailURL string) error {
	err := a.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("thumb_nail_url", thumbNailURL).Error
	if err != nil {
		return errors.Wrap(err, "failed to update profile image")
	}
	return nil
}

func (a *authRepo) SetResetToken(email, token string) error {
	err := a.DB.Model(&models.User{}).Where("email = ?", email).
		Update("reset_token", token).Error
	if err != nil {
		return errors.Wrap(err, "failed to set reset token")
	}
	return nil
}

func (a *authRepo) FindUserByResetToken(token string) (*models.User, error) {
	var user models.User
	if err := a.DB.Where("reset_token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) UpdatePassword(userID uuid.UUID, hashedPassword string) error {
	err := a.DB.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"hashed_password": hashedPassword, "reset_token": ""}).Error
	if err != nil {
		return errors.Wrap(err, "failed to update password")
	}
	return nil
}

func (a *authRepo) AddToBlacklist(token string) error {
	if err := a.DB.Create(&models.Blacklist{Token: token}).Error; err != nil {
		return errors.Wrap(err, "failed to blacklist token")
	}
	return nil
}

func (a *authRepo) IsTokenInBlacklist(token string) bool {
	var count int64
	if err := a.DB.Model(&models.Blacklist{}).Where("token = ?", token).Count(&count).Error; err != nil {
		log.Printf("blacklist lookup error: %v", err)
		return false
	}
	return count > 0
}
