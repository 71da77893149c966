package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/curriculum-portal-api/internal/models"
	"github.com/noah-isme/curriculum-portal-api/internal/repository"
	"github.com/noah-isme/curriculum-portal-api/internal/service"
	"github.com/noah-isme/curriculum-portal-api/pkg/config"
	"github.com/noah-isme/curriculum-portal-api/pkg/database"
	"github.com/noah-isme/curriculum-portal-api/pkg/logger"
)

func main() {
	adminEmail := flag.String("admin-email", "", "also create an administrator with this email")
	adminPassword := flag.String("admin-password", "", "password for -admin-email")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feedback := service.NewFeedbackService(repository.NewFeedbackRepository(db), nil, 0, nil, logr)
	questions := service.DefaultQuestions()
	if err := feedback.ReplaceQuestions(ctx, questions); err != nil {
		logr.Fatal("failed to seed feedback questions", zap.Error(err))
	}
	logr.Info("feedback catalog replaced", zap.Int("questions", len(questions)))

	if *adminEmail == "" {
		return
	}
	if err := seedAdmin(ctx, repository.NewUserRepository(db), *adminEmail, *adminPassword); err != nil {
		logr.Fatal("failed to seed administrator", zap.Error(err))
	}
	logr.Info("administrator created", zap.String("email", *adminEmail))
}

func seedAdmin(ctx context.Context, users *repository.UserRepository, email, password string) error {
	if len(password) < 8 {
		return errors.New("admin password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Administrator",
		Role:         models.RoleAdministrator,
		Active:       true,
	})
}
