package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
	"github.com/techagentng/achat/server/response"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := decode(c, &user); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		created, err := s.AuthService.SignupUser(&user)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "Signup successful", http.StatusCreated, models.UserResponse{
			ID:       created.ID.String(),
			Fullname: created.Fullname,
			Username: created.Username,
			Email:    created.Email,
		}, nil)
	}
}

func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var loginRequest models.LoginRequest
		if err := decode(c, &loginRequest); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		loginResponse, apiErr := s.AuthService.LoginUser(&loginRequest)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, loginResponse, nil)
	}
}

func (s *Server) handleGoogleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var loginRequest models.GoogleLoginRequest
		if err := decode(c, &loginRequest); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		loginResponse, apiErr := s.AuthService.GoogleLoginUser(&loginRequest)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, loginResponse, nil)
	}
}

// HandleGoogleRedirect sends the browser into the Google consent flow. The
// client finishes by posting the resulting id token to /auth/google/login.
func (s *Server) HandleGoogleRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		conf := &oauth2.Config{
			ClientID:     s.Config.GoogleClientID,
			ClientSecret: s.Config.GoogleClientSecret,
			RedirectURL:  s.Config.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}

		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			response.JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			return
		}
		state := base64.URLEncoding.EncodeToString(b)
		c.SetCookie("oauthstate", state, 300, "/", "", false, true)

		c.Redirect(http.StatusTemporaryRedirect, conf.AuthCodeURL(state, oauth2.AccessTypeOffline))
	}
}

func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Get("access_token")
		accessToken, ok := token.(string)
		if !ok || accessToken == "" {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		if err := s.AuthService.LogoutUser(accessToken); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "logout successful", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleShowProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		user, err := s.AuthService.GetUserProfile(userID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, user, nil)
	}
}

func (s *Server) handleGetUserProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, err := uuid.Parse(c.Param("userID"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		user, err := s.AuthService.GetUserProfile(targetID)
		if err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, models.UserResponse{
			ID:           user.ID.String(),
			Fullname:     user.Fullname,
			Username:     user.Username,
			Email:        user.Email,
			ThumbNailURL: user.ThumbNailURL,
			About:        user.About,
			PublicKey:    user.PublicKey,
		}, nil)
	}
}

func (s *Server) handleEditUserProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		var details models.EditProfileRequest
		if err := decode(c, &details); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.AuthService.EditUserProfile(userID, &details); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "profile updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleUpdateUserImageUrl() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		fileHeader, err := c.FormFile("profileImage")
		if err != nil {
			response.JSON(c, "missing or invalid file", http.StatusBadRequest, nil, err)
			return
		}

		fileURL, err := s.MediaService.UploadProfileImage(c.Request.Context(), fileHeader, userID)
		if err != nil {
			handleError(c, err)
			return
		}
		if err := s.AuthRepository.UpdateUserImage(userID, fileURL); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "profile image updated", http.StatusOK, gin.H{"url": fileURL}, nil)
	}
}

func (s *Server) handlePublishPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		body := struct {
			PublicKey string `json:"public_key" binding:"required"`
		}{}
		if err := decode(c, &body); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}
		if err := s.AuthService.PublishPublicKey(userID, body.PublicKey); err != nil {
			handleError(c, err)
			return
		}
		response.JSON(c, "public key published", http.StatusOK, nil, nil)
	}
}

func (s *Server) HandleForgotPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.ForgotPassword
		if err := decode(c, &request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		if apiErr := s.AuthService.SendEmailForPasswordReset(&request); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "Reset Password Link Sent Successfully", http.StatusOK, nil, nil)
	}
}

func (s *Server) ResetPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.ResetPassword
		if err := decode(c, &request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		token := c.Param("token")
		if apiErr := s.AuthService.ResetPassword(&request, token); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "Password Reset Successfully", http.StatusOK, nil, nil)
	}
}
