package main

import (
	"context"
	"log"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/techagentng/achat/config"
	"github.com/techagentng/achat/db"
	"github.com/techagentng/achat/mailingservices"
	"github.com/techagentng/achat/server"
	"github.com/techagentng/achat/services"
	"google.golang.org/api/option"
)

// initFirebase builds the FCM client. Push is optional: without credentials
// the app runs with notifications stored but not pushed.
func initFirebase(conf *config.Config) *messaging.Client {
	credentials := conf.GoogleApplicationCredentials
	if credentials == "" {
		credentials = "./google-services.json"
	}
	opt := option.WithCredentialsFile(credentials)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("firebase init failed, push disabled: %v", err)
		return nil
	}
	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("firebase messaging init failed, push disabled: %v", err)
		return nil
	}
	log.Println("Firebase Messaging client initialized")
	return client
}

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	messagingClient := initFirebase(conf)

	mailgunClient := &mailingservices.Mailgun{}
	mailgunClient.Init()

	gormDB := db.GetDB(conf)

	authRepo := db.NewAuthRepo(gormDB)
	chatRepo := db.NewChatRepo(gormDB)
	mediaRepo, err := db.NewMediaRepo(conf)
	if err != nil {
		log.Fatalf("media storage init failed: %v", err)
	}
	followRepo := db.NewFollowRepo(gormDB)
	serviceRequestRepo := db.NewServiceRequestRepo(gormDB)
	notificationRepo := db.NewNotificationRepo(gormDB)

	encryptionService, err := services.NewEncryptionService(conf.EncryptionPrivateKey)
	if err != nil {
		log.Fatalf("encryption init failed: %v", err)
	}

	broker := services.NewFeedBroker()
	notificationService := services.NewNotificationService(notificationRepo, authRepo, messagingClient)
	mediaService := services.NewMediaService(mediaRepo, chatRepo, conf)
	chatService := services.NewChatService(chatRepo, mediaRepo, authRepo, encryptionService, notificationService, broker, conf)
	authService := services.NewAuthService(authRepo, mailgunClient, conf)
	followService := services.NewFollowService(followRepo, authRepo)
	serviceRequestService := services.NewServiceRequestService(serviceRequestRepo, chatService)

	s := &server.Server{
		Config:                conf,
		Mail:                  mailgunClient,
		AuthRepository:        authRepo,
		ChatRepository:        chatRepo,
		AuthService:           authService,
		ChatService:           chatService,
		MediaService:          mediaService,
		FollowService:         followService,
		ServiceRequestService: serviceRequestService,
		NotificationService:   notificationService,
		FeedBroker:            broker,
		DB:                    db.GormDB{},
	}
	s.Start()
}
