package services

import (
	"github.com/redis/go-redis/v9"

	"github.com/ferumlab/ferum-hub/internal/cache"
	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/ferumlab/ferum-hub/internal/db"
	"github.com/ferumlab/ferum-hub/internal/drive"
	"github.com/ferumlab/ferum-hub/internal/mailer"
	"github.com/ferumlab/ferum-hub/internal/services/access"
	"github.com/ferumlab/ferum-hub/internal/services/chatlink"
	"github.com/ferumlab/ferum-hub/internal/services/project"
	"github.com/ferumlab/ferum-hub/internal/services/request"
	"github.com/ferumlab/ferum-hub/internal/services/subscription"
	"github.com/ferumlab/ferum-hub/internal/services/user"
	"github.com/ferumlab/ferum-hub/internal/services/verification"
	"github.com/ferumlab/ferum-hub/internal/uploader"
)

type Services struct {
	User         *user.UserService
	Project      *project.ProjectService
	Access       *access.Resolver
	ChatLink     *chatlink.ChatLinkService
	Verification *verification.VerificationService
	Request      *request.RequestService
	Subscription *subscription.SubscriptionService
	Drive        *drive.Provisioner
	Uploader     *uploader.Uploader

	Redis *redis.Client
}

func NewServices(conf *config.Config) *Services {
	dbconn := db.NewConn(conf)
	redisClient := cache.NewClient(conf)
	markers := cache.NewMarkers(redisClient, "")

	userSvc := user.NewUserService(user.NewUserRepo(dbconn))
	projectSvc := project.NewProjectService(project.NewProjectRepo(dbconn))
	accessRepo := access.NewAccessRepo(dbconn)
	resolver := access.NewResolver(accessRepo)
	chatLinkSvc := chatlink.NewChatLinkService(chatlink.NewChatLinkRepo(dbconn))

	verificationSvc := verification.NewVerificationService(
		verification.NewVerificationRepo(dbconn),
		mailer.NewSMTPMailer(conf),
		markers,
		userSvc,
		projectSvc,
		chatLinkSvc,
	)

	requestSvc := request.NewRequestService(
		request.NewRequestRepo(dbconn), projectSvc, userSvc, accessRepo)

	driveClient := drive.NewHTTPClient(conf)
	provisioner := drive.NewProvisioner(driveClient, conf.DRIVE_ROOT_FOLDER, projectSvc)

	up := uploader.New(
		uploader.NewTelegramFileSource(conf.TELEGRAM_BOT_TOKEN),
		driveClient,
		provisioner,
		resolver,
		projectSvc,
		requestSvc,
	)

	return &Services{
		User:         userSvc,
		Project:      projectSvc,
		Access:       resolver,
		ChatLink:     chatLinkSvc,
		Verification: verificationSvc,
		Request:      requestSvc,
		Subscription: subscription.NewSubscriptionService(subscription.NewSubscriptionRepo(dbconn)),
		Drive:        provisioner,
		Uploader:     up,
		Redis:        redisClient,
	}
}
