package notifications

import (
	"context"
	"fmt"
	"strconv"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PushSink sends events to the recipient's registered Expo devices.
type PushSink struct {
	db         *gorm.DB
	expoClient *expo.PushClient
	logger     *zap.Logger
}

func NewPushSink(db *gorm.DB, accessToken string, logger *zap.Logger) *PushSink {
	var cfg *expo.ClientConfig
	if accessToken != "" {
		cfg = &expo.ClientConfig{AccessToken: accessToken}
	}
	return &PushSink{db: db, expoClient: expo.NewPushClient(cfg), logger: logger}
}

func (s *PushSink) Name() string { return "expo" }

func (s *PushSink) Deliver(ctx context.Context, recipient *models.User, ev Event) error {
	var devices []models.Device
	if err := s.db.WithContext(ctx).Where("user_id = ?", recipient.ID).Find(&devices).Error; err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	var validTokens []expo.ExponentPushToken
	var invalidTokens []string
	for _, d := range devices {
		pushToken, err := expo.NewExponentPushToken(d.Token)
		if err != nil {
			invalidTokens = append(invalidTokens, d.Token)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}
	defer s.cleanupInvalidTokens(ctx, invalidTokens)

	if len(validTokens) == 0 {
		return fmt.Errorf("no valid push tokens for user %d", recipient.ID)
	}

	data := map[string]string{
		"type":       string(ev.Type),
		"booking_id": strconv.FormatUint(uint64(ev.BookingID), 10),
	}
	for k, v := range ev.Data {
		data[k] = v
	}

	response, err := s.expoClient.Publish(&expo.PushMessage{
		To:       validTokens,
		Body:     ev.Message,
		Title:    ev.Title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("publish push notification: %w", err)
	}
	if err := response.ValidateResponse(); err != nil {
		return fmt.Errorf("push notification rejected: %w", err)
	}
	return nil
}

func (s *PushSink) cleanupInvalidTokens(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			s.logger.Warn("remove invalid push token", zap.Error(err))
		}
	}
}
