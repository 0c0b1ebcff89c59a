package models

import (
	"errors"

	goval "github.com/go-passwd/validator"
	"github.com/leebenson/conform"
)

// User represents a user of the application
type User struct {
	Model
	Fullname       string `json:"fullname" binding:"required,min=2" conform:"trim"`
	Username       string `json:"username" binding:"required,min=2" conform:"trim,lower"`
	Email          string `json:"email" gorm:"unique;not null" binding:"required,email" conform:"trim,lower"`
	Password       string `json:"password,omitempty" gorm:"-" validate:"omitempty,min=6"`
	HashedPassword string `json:"-"`
	IsSocial       bool   `json:"-"`
	IsAnonymous    bool   `json:"is_anonymous"`
	AccessToken    string `json:"-" gorm:"-"`
	ThumbNailURL   string `json:"thumbnail_url,omitempty"`
	About          string `json:"about,omitempty" conform:"trim"`
	ResetToken     string `json:"-"`
	Online         bool   `json:"online"`

	// Base64 curve25519 public key published for encrypted direct chats.
	PublicKey string `json:"public_key,omitempty"`

	// Notification preferences consumed by the notification service.
	NotifySound   bool `json:"notify_sound" gorm:"default:true"`
	NotifyVibrate bool `json:"notify_vibrate" gorm:"default:true"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" conform:"trim,lower"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	UserResponse
	AccessToken string `json:"access_token"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Fullname     string `json:"fullname"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ThumbNailURL string `json:"thumbnail_url,omitempty"`
	About        string `json:"about,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type EditProfileRequest struct {
	Fullname      string `json:"fullname" conform:"trim"`
	Username      string `json:"username" conform:"trim,lower"`
	About         string `json:"about" conform:"trim"`
	NotifySound   *bool  `json:"notify_sound,omitempty"`
	NotifyVibrate *bool  `json:"notify_vibrate,omitempty"`
}

type ForgotPassword struct {
	Email string `json:"email" binding:"required,email" conform:"trim,lower"`
}

type ResetPassword struct {
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func ValidatePassword(password string) error {
	passwordValidator := goval.New(goval.MinLength(6, errors.New("password cant be less than 6 characters")),
		goval.MaxLength(64, errors.New("password cant be more than 64 characters")))
	return passwordValidator.Validate(password)
}

// ConformInput trims and normalizes tagged string fields in place.
func ConformInput(req interface{}) error {
	return conform.Strings(req)
}
