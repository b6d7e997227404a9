package store

import (
	"context"
	"fmt"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
)

// SMSPublisher is satisfied by aws.SNSClient.
type SMSPublisher interface {
	PublishSMS(ctx context.Context, phone, message string) (string, error)
}

// SMSNotificationStore stores a notification and mirrors it as a text
// message to the applicant's phone. Delivery problems are logged; the stored
// notification is the record of truth.
type SMSNotificationStore struct {
	next       NotificationStore
	applicants ApplicantStore
	sms        SMSPublisher
	logger     logger.Logger
}

func NewSMSNotificationStore(next NotificationStore, applicants ApplicantStore, sms SMSPublisher, log logger.Logger) *SMSNotificationStore {
	return &SMSNotificationStore{
		next:       next,
		applicants: applicants,
		sms:        sms,
		logger:     logger.ForComponent(log, "sms-notifications"),
	}
}

func (s *SMSNotificationStore) AddNotification(ctx context.Context, n models.Notification) error {
	if err := s.next.AddNotification(ctx, n); err != nil {
		return err
	}

	applicant, err := s.applicants.GetApplicant(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("sms skipped, applicant lookup failed", map[string]interface{}{
			"userId": n.UserID,
			"error":  err,
		})
		return nil
	}
	if applicant.Phone == "" {
		return nil
	}

	msgID, err := s.sms.PublishSMS(ctx, applicant.Phone, fmt.Sprintf("%s: %s", n.Title, n.Message))
	if err != nil {
		s.logger.Warn("sms delivery failed", map[string]interface{}{
			"userId":         n.UserID,
			"notificationId": n.ID,
			"error":          err,
		})
		return nil
	}
	s.logger.Info("sms sent", map[string]interface{}{
		"userId":    n.UserID,
		"messageId": msgID,
	})
	return nil
}
