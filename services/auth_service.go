package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/techagentng/achat/config"
	"github.com/techagentng/achat/db"
	apiError "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/mailingservices"
	"github.com/techagentng/achat/models"
	"github.com/techagentng/achat/services/jwt"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// AuthService interface
type AuthService interface {
	SignupUser(user *models.User) (*models.User, error)
	LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error)
	GoogleLoginUser(loginRequest *models.GoogleLoginRequest) (*models.LoginResponse, *apiError.Error)
	LogoutUser(token string) error
	GetUserProfile(userID uuid.UUID) (*models.User, error)
	EditUserProfile(userID uuid.UUID, userDetails *models.EditProfileRequest) error
	PublishPublicKey(userID uuid.UUID, publicKey string) error
	SendEmailForPasswordReset(request *models.ForgotPassword) *apiError.Error
	ResetPassword(request *models.ResetPassword, token string) *apiError.Error
}

type authService struct {
	Config   *config.Config
	authRepo db.AuthRepository
	mail     mailingservices.MailService
}

// NewAuthService instantiate an authService
func NewAuthService(authRepo db.AuthRepository, mail mailingservices.MailService, conf *config.Config) AuthService {
	return &authService{
		Config:   conf,
		authRepo: authRepo,
		mail:     mail,
	}
}

func (s *authService) SignupUser(user *models.User) (*models.User, error) {
	if user == nil || user.Email == "" {
		return nil, errors.New("email is empty")
	}
	if err := models.ConformInput(user); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(user.Password); err != nil {
		return nil, apiError.New(err.Error(), http.StatusBadRequest)
	}

	if err := s.authRepo.IsEmailExist(user.Email); err != nil {
		log.Printf("SignupUser error: %v", err)
		return nil, apiError.GetUniqueContraintError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("SignupUser error hashing password: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	user.HashedPassword = string(hashedPassword)
	user.Password = ""

	created, err := s.authRepo.CreateUser(user)
	if err != nil {
		log.Printf("SignupUser error creating user: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	if s.mail != nil {
		if _, err := s.mail.SendWelcomeMessage(created.Email, created.Fullname); err != nil {
			log.Printf("welcome email to %s failed: %v", created.Email, err)
		}
	}
	return created, nil
}

func GenerateHashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashedPassword), err
}

// LoginUser logs in a user and returns the login response
func (a *authService) LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error) {
	if err := models.ConformInput(loginRequest); err != nil {
		return nil, apiError.ErrBadRequest
	}

	foundUser, err := a.authRepo.FindUserByEmail(loginRequest.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.New("invalid email or password", http.StatusUnprocessableEntity)
		}
		log.Printf("Error finding user by email: %v", err)
		return nil, apiError.New("unable to find user", http.StatusInternalServerError)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.HashedPassword), []byte(loginRequest.Password)); err != nil {
		log.Printf("Invalid password for user %s", foundUser.Email)
		return nil, apiError.New("invalid email or password", http.StatusUnprocessableEntity)
	}

	return a.buildLoginResponse(foundUser)
}

// GoogleLoginUser verifies a Google id token and signs the user in, creating
// the account on first login.
func (a *authService) GoogleLoginUser(loginRequest *models.GoogleLoginRequest) (*models.LoginResponse, *apiError.Error) {
	payload, err := idtoken.Validate(context.Background(), loginRequest.IDToken, a.Config.GoogleClientID)
	if err != nil {
		log.Printf("google id token validation failed: %v", err)
		return nil, apiError.ErrUnauthorized
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, apiError.ErrUnauthorized
	}

	foundUser, err := a.authRepo.FindUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a.createGoogleUser(email, payload.Claims)
		}
		log.Printf("Error finding user by email: %v", err)
		return nil, apiError.New("unable to find user", http.StatusInternalServerError)
	}
	return a.buildLoginResponse(foundUser)
}

func (a *authService) createGoogleUser(email string, claims map[string]interface{}) (*models.LoginResponse, *apiError.Error) {
	username := strings.Split(email, "@")[0]
	if len(username) < 2 {
		username = username + "user"
	}

	fullname, _ := claims["name"].(string)
	if fullname == "" {
		fullname = "Google User"
	}
	picture, _ := claims["picture"].(string)

	newUser := &models.User{
		Email:        email,
		Fullname:     fullname,
		Username:     username,
		ThumbNailURL: picture,
		IsSocial:     true,
	}
	created, err := a.authRepo.CreateUser(newUser)
	if err != nil {
		log.Printf("Error creating user for email %s: %v", email, err)
		return nil, apiError.New("unable to create user", http.StatusInternalServerError)
	}
	return a.buildLoginResponse(created)
}

func (a *authService) buildLoginResponse(user *models.User) (*models.LoginResponse, *apiError.Error) {
	accessToken, err := jwt.GenerateToken(user.ID, user.Email, a.Config.JWTSecret)
	if err != nil {
		log.Printf("Error generating token for user %s: %v", user.Email, err)
		return nil, apiError.ErrInternalServerError
	}

	return &models.LoginResponse{
		UserResponse: models.UserResponse{
			ID:           user.ID.String(),
			Fullname:     user.Fullname,
			Username:     user.Username,
			Email:        user.Email,
			ThumbNailURL: user.ThumbNailURL,
			About:        user.About,
			PublicKey:    user.PublicKey,
		},
		AccessToken: accessToken,
	}, nil
}

// LogoutUser blacklists the presented access token.
func (a *authService) LogoutUser(token string) error {
	return a.authRepo.AddToBlacklist(token)
}

func (a *authService) GetUserProfile(userID uuid.UUID) (*models.User, error) {
	user, err := a.authRepo.FindUserByID(userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (a *authService) EditUserProfile(userID uuid.UUID, userDetails *models.EditProfileRequest) error {
	if err := models.ConformInput(userDetails); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if userDetails.Fullname != "" {
		updates["fullname"] = userDetails.Fullname
	}
	if userDetails.Username != "" {
		updates["username"] = userDetails.Username
	}
	if userDetails.About != "" {
		updates["about"] = userDetails.About
	}
	if userDetails.NotifySound != nil {
		updates["notify_sound"] = *userDetails.NotifySound
	}
	if userDetails.NotifyVibrate != nil {
		updates["notify_vibrate"] = *userDetails.NotifyVibrate
	}
	if len(updates) == 0 {
		return nil
	}
	return a.authRepo.UpdateUserProfile(userID, updates)
}

// PublishPublicKey stores the user's curve25519 public key so peers can open
// encrypted direct chats with them.
func (a *authService) PublishPublicKey(userID uuid.UUID, publicKey string) error {
	if publicKey == "" {
		return apiError.ErrBadRequest
	}
	return a.authRepo.UpdateUserProfile(userID, map[string]interface{}{"public_key": publicKey})
}

func (a *authService) SendEmailForPasswordReset(request *models.ForgotPassword) *apiError.Error {
	if err := models.ConformInput(request); err != nil {
		return apiError.ErrBadRequest
	}

	user, err := a.authRepo.FindUserByEmail(request.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Same answer whether or not the account exists.
			return nil
		}
		return apiError.ErrInternalServerError
	}

	resetToken, err := jwt.GenerateToken(user.ID, user.Email, a.Config.JWTSecret)
	if err != nil {
		log.Printf("reset token generation failed: %v", err)
		return apiError.ErrInternalServerError
	}
	if err := a.authRepo.SetResetToken(user.Email, resetToken); err != nil {
		return apiError.ErrInternalServerError
	}

	baseURL := a.Config.BaseUrl
	if baseURL == "" {
		baseURL = "http://localhost:3002"
	}
	resetLink := fmt.Sprintf("%s/reset-password/%s", baseURL, resetToken)

	if a.mail == nil {
		return apiError.New("mail service unavailable", http.StatusInternalServerError)
	}
	if _, err := a.mail.SendResetPassword(user.Email, resetLink); err != nil {
		return apiError.New("connection to mail service interrupted", http.StatusInternalServerError)
	}
	return nil
}

func (a *authService) ResetPassword(request *models.ResetPassword, token string) *apiError.Error {
	if request.Password != request.ConfirmPassword {
		return apiError.New("passwords do not match", http.StatusBadRequest)
	}
	if err := models.ValidatePassword(request.Password); err != nil {
		return apiError.New(err.Error(), http.StatusBadRequest)
	}

	user, err := a.authRepo.FindUserByResetToken(token)
	if err != nil {
		return apiError.New("invalid or expired reset token", http.StatusUnauthorized)
	}
	if _, err := jwt.ValidateAndGetClaims(token, a.Config.JWTSecret); err != nil {
		return apiError.New("invalid or expired reset token", http.StatusUnauthorized)
	}

	hashedPassword, err := GenerateHashPassword(request.Password)
	if err != nil {
		return apiError.ErrInternalServerError
	}
	if err := a.authRepo.UpdatePassword(user.ID, hashedPassword); err != nil {
		return apiError.ErrInternalServerError
	}
	return nil
}
