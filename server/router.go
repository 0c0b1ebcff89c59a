package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	resetStore := newRateLimitStore(time.Minute, 3)
	sendStore := newRateLimitStore(time.Second, 10)

	apirouter := router.Group("/api/v1")
	apirouter.POST("/auth/signup", s.handleSignup())
	apirouter.POST("/auth/login", s.handleLogin())
	apirouter.POST("/auth/google/login", s.handleGoogleLogin())
	apirouter.GET("/google/login", s.HandleGoogleRedirect())
	apirouter.POST("/password/forgot", limitRateForPasswordReset(resetStore), s.HandleForgotPassword())
	apirouter.POST("/password/reset/:token", s.ResetPassword())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())
	authorized.GET("/logout", s.handleLogout())
	authorized.GET("/me", s.handleShowProfile())
	authorized.PUT("/me/updateUserProfile", s.handleEditUserProfile())
	authorized.PUT("/me/profileImage", s.handleUpdateUserImageUrl())
	authorized.PUT("/me/publicKey", s.handlePublishPublicKey())
	authorized.GET("/users/:userID", s.handleGetUserProfile())

	authorized.POST("/conversations/direct", s.handleCreateDirectConversation())
	authorized.POST("/conversations/group", s.handleCreateGroupConversation())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.GET("/conversations/:conversationID/messages", s.handleGetMessages())
	authorized.POST("/conversations/:conversationID/messages", limitRateForSend(sendStore), s.handleSendMessage())
	authorized.POST("/conversations/:conversationID/media", s.handleUploadMedia())
	authorized.PUT("/conversations/:conversationID/read", s.handleMarkConversationRead())
	authorized.PUT("/conversations/:conversationID/block", s.handleBlockConversation())
	authorized.PUT("/conversations/:conversationID/timer", s.handleSetMessageTimer())
	authorized.PUT("/conversations/:conversationID/screenshot", s.handleSetScreenshotBlocked())
	authorized.GET("/conversations/:conversationID/ws", s.handleChatSocket())
	authorized.DELETE("/messages/:messageID", s.handleDeleteMessage())

	authorized.POST("/users/:userID/follow", s.handleFollow())
	authorized.DELETE("/users/:userID/follow", s.handleUnfollow())
	authorized.GET("/users/:userID/followers", s.handleFollowers())
	authorized.GET("/users/:userID/following", s.handleFollowing())
	authorized.GET("/users/:userID/follow-counts", s.handleFollowCounts())

	authorized.POST("/service-requests", s.handleCreateServiceRequest())
	authorized.GET("/service-requests", s.handleListOpenServiceRequests())
	authorized.GET("/service-requests/mine", s.handleListMyServiceRequests())
	authorized.POST("/service-requests/:requestID/accept", s.handleAcceptServiceRequest())
	authorized.PUT("/service-requests/:requestID/close", s.handleCloseServiceRequest())

	authorized.POST("/notifications/add-token", s.handleRegisterDeviceToken())
	authorized.GET("/notifications", s.handleListNotifications())
	authorized.PUT("/notifications/:conversationID/read", s.handleMarkNotificationRead())
}
