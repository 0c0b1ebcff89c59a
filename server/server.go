package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/techagentng/achat/config"
	"github.com/techagentng/achat/db"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/mailingservices"
	"github.com/techagentng/achat/services"
)

type Server struct {
	Config *config.Config
	Mail   mailingservices.MailService

	AuthRepository db.AuthRepository
	ChatRepository db.ChatRepository

	AuthService           services.AuthService
	ChatService           services.ChatService
	MediaService          services.MediaService
	FollowService         services.FollowService
	ServiceRequestService services.ServiceRequestService
	NotificationService   services.NotificationService
	FeedBroker            *services.FeedBroker

	DB db.GormDB
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests.
func (s *Server) Start() {
	r := s.setupRouter()

	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("listening on :%d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}

// decode binds the JSON body and flattens validation failures into one error
// with a 400 status.
func decode(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return errs.New(strings.Join(fields, "; "), http.StatusBadRequest)
		}
		return errs.New(err.Error(), http.StatusBadRequest)
	}
	return nil
}
