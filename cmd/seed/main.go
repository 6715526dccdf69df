// Command seed bootstraps the platform admin account. It is idempotent:
// an existing platform admin is left untouched.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/principal"
	"github.com/tamilselvan8428/person-tracking/pkg/config"
	"github.com/tamilselvan8428/person-tracking/pkg/database"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	conf, err := config.Load("tracker")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: "tracker-seed",
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	db, err := database.InitDB(&conf.DB)
	if err != nil {
		log.Fatal("Failed to initialize database")
	}
	if err := database.MigrateModels(
		&model.Tenant{},
		&model.User{},
		&model.TenantUser{},
		&model.Device{},
		&model.Observation{},
	); err != nil {
		log.Fatal("Failed to migrate database models")
	}

	email := getEnv("ADMIN_EMAIL", "admin@local")
	password := getEnv("ADMIN_PASSWORD", "Admin@12345")

	var existing model.User
	err = db.Where("role = ?", string(principal.RolePlatformAdmin)).First(&existing).Error
	if err == nil {
		log.Info("Platform admin already exists", zap.String("email", existing.Email))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatal("Failed to query platform admin", zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password", zap.Error(err))
	}

	admin := model.User{
		Email:    email,
		Password: string(hash),
		Role:     string(principal.RolePlatformAdmin),
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatal("Failed to create platform admin", zap.Error(err))
	}

	log.Info("Platform admin created", zap.String("email", email))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
