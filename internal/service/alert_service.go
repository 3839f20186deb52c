package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"aml-monitor/internal/models"
	"aml-monitor/internal/repository"
)

var ErrInvalidAlertID = errors.New("invalid alert ID")

// AlertService exposes the read and acknowledgement side of alerting.
type AlertService interface {
	ListUserAlerts(ctx context.Context, userID int64, limit, offset int) ([]*models.Alert, error)
	MarkAlertRead(ctx context.Context, id string) error
	MarkAlertResolved(ctx context.Context, id string) error
}

type alertService struct {
	alerts repository.AlertRepository
}

func NewAlertService(alerts repository.AlertRepository) AlertService {
	return &alertService{alerts: alerts}
}

func (s *alertService) ListUserAlerts(ctx context.Context, userID int64, limit, offset int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.alerts.ListByUser(ctx, userID, limit, offset)
}

func (s *alertService) MarkAlertRead(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidAlertID
	}
	return s.alerts.MarkRead(ctx, objectID)
}

func (s *alertService) MarkAlertResolved(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidAlertID
	}
	return s.alerts.MarkResolved(ctx, objectID)
}
