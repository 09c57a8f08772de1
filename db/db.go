package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPSQLStorage(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DB_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)

	return db, nil
}

// Table pairs a model with the name used by the migrate and clear-db commands.
type Table struct {
	Name  string
	Model interface{}
}

// Tables lists every model in dependency order.
func Tables() []Table {
	return []Table{
		{"User", &models.User{}},
		{"TalentProfile", &models.TalentProfile{}},
		{"Event", &models.Event{}},
		{"Booking", &models.Booking{}},
		{"BookingStatusEvent", &models.BookingStatusEvent{}},
		{"AvailabilityEntry", &models.AvailabilityEntry{}},
		{"Transaction", &models.Transaction{}},
		{"Payout", &models.Payout{}},
		{"Review", &models.Review{}},
		{"ScheduledJob", &models.ScheduledJob{}},
		{"Device", &models.Device{}},
		{"NotificationHistory", &models.NotificationHistory{}},
	}
}

func Migrate(db *gorm.DB) error {
	for _, t := range Tables() {
		if err := db.AutoMigrate(t.Model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", t.Name, err)
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// Drivers without error translation are matched on their message.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
