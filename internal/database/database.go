package database

import (
	"context"
	"fmt"
	"time"

	"campaign-payments/internal/config"
	"campaign-payments/internal/models"
	"campaign-payments/pkg/logging"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Connect opens the ledger database. PostgreSQL is used when DATABASE_URL is
// set; otherwise a local SQLite file is used for development.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsRelease() {
		logLevel = logger.Warn
	}

	var (
		db  *gorm.DB
		err error
	)
	if dsn := cfg.DatabaseURL; dsn == "" {
		logging.Infof("Database URL not set, using SQLite for development")
		db, err = OpenSQLite("campaign-payments.db?_busy_timeout=5000", logLevel)
	} else {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig(logLevel))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Infof("Database connected successfully")
	return db, nil
}

// OpenSQLite opens a SQLite database. SQLite allows a single writer, so all
// access is serialized through one connection.
func OpenSQLite(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(logLevel))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig(logLevel logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		TranslateError: true,
	}
}

// ConnectRedis connects to Redis. An empty URL returns a nil client and no
// error; callers fall back to in-process implementations.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		logging.Infof("Redis URL not set, replay guard runs in memory and rate limiting is disabled")
		return nil, nil
	}

	logging.Infof("Connecting to Redis: %s", maskRedisURL(redisURL))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Infof("Redis connected successfully")
	return client, nil
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if len(url) > 20 {
		return url[:10] + "***" + url[len(url)-10:]
	}
	return "***"
}

// AutoMigrate creates or updates the ledger and directory tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Campaign{},
		&models.Contestant{},
		&models.Transaction{},
		&models.TicketIssuance{},
		&models.VoteTally{},
	)
}

// SeedDemoData inserts one ticket and one vote campaign for local development.
func SeedDemoData(db *gorm.DB) error {
	tickets := models.Campaign{
		Slug:       "demo-concert",
		Title:      "Demo Concert",
		Type:       models.CampaignTypeTicket,
		Currency:   "NGN",
		UnitAmount: 5000,
		MaxPerTxn:  10,
		OwnerID:    "demo-operator",
		IsActive:   true,
	}
	if err := db.Where("slug = ?", tickets.Slug).FirstOrCreate(&tickets).Error; err != nil {
		return fmt.Errorf("failed to create demo ticket campaign: %w", err)
	}

	votes := models.Campaign{
		Slug:       "demo-awards",
		Title:      "Demo Awards",
		Type:       models.CampaignTypeVote,
		Currency:   "NGN",
		UnitAmount: 100,
		MaxPerTxn:  500,
		OwnerID:    "demo-operator",
		IsActive:   true,
	}
	if err := db.Where("slug = ?", votes.Slug).FirstOrCreate(&votes).Error; err != nil {
		return fmt.Errorf("failed to create demo vote campaign: %w", err)
	}

	for _, name := range []string{"Contestant A", "Contestant B"} {
		contestant := models.Contestant{CampaignID: votes.ID, Name: name}
		if err := db.Where("campaign_id = ? AND name = ?", votes.ID, name).FirstOrCreate(&contestant).Error; err != nil {
			return fmt.Errorf("failed to create demo contestant: %w", err)
		}
	}

	logging.Infof("Demo data inserted successfully")
	return nil
}

// Close closes database connections
func Close(db *gorm.DB, rdb *redis.Client) {
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logging.Errorf("Failed to close database: %v", err)
			}
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logging.Errorf("Failed to close Redis: %v", err)
		}
	}
}
