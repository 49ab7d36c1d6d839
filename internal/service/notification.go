package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService writes notification rows for passengers. Delivery
// beyond the row (push, email) is not handled here.
type NotificationService struct {
	store    repository.Store
	clock    clock.Clock
	recorder Recorder
	logger   *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store repository.Store, clk clock.Clock, recorder Recorder, logger *slog.Logger) *NotificationService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:    store,
		clock:    clk,
		recorder: recorder,
		logger:   logger,
	}
}

// NotifyTripStarted tells every enrolled passenger the trip is on its way.
func (s *NotificationService) NotifyTripStarted(ctx context.Context, trip *domain.Trip, passengerIDs []string) error {
	return s.broadcast(ctx, trip.ID, passengerIDs, domain.NotificationTripStarted,
		"Trip started",
		fmt.Sprintf("The shuttle for %s has departed.", trip.Date.Format(domain.DateLayout)))
}

// NotifyTripFinished tells every enrolled passenger the trip is over.
func (s *NotificationService) NotifyTripFinished(ctx context.Context, trip *domain.Trip, passengerIDs []string) error {
	return s.broadcast(ctx, trip.ID, passengerIDs, domain.NotificationTripFinished,
		"Trip finished",
		fmt.Sprintf("The shuttle for %s has finished its route.", trip.Date.Format(domain.DateLayout)))
}

// SendMessageRequest contains the parameters for messaging a trip's passengers.
type SendMessageRequest struct {
	TripID     string
	SenderID   string
	SenderRole domain.Role
	Text       string
}

// SendTripMessage writes a MESSAGE notification for each passenger of the
// trip and returns how many were written. Drivers may only message trips of
// their own route.
func (s *NotificationService) SendTripMessage(ctx context.Context, req SendMessageRequest) (int, error) {
	if req.TripID == "" {
		return 0, ErrInvalidTripID
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return 0, ErrEmptyMessage
	}

	repos := s.store.Repos()

	trip, err := repos.Trips.GetByID(ctx, req.TripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrTripNotFound
		}
		return 0, err
	}

	if req.SenderRole == domain.RoleDriver {
		route, err := repos.Routes.GetByID(ctx, trip.RouteID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		if route == nil || route.DriverID != req.SenderID {
			return 0, ErrNotTripDriver
		}
	}

	recipients, err := passengerIDs(ctx, repos, trip.ID)
	if err != nil {
		return 0, err
	}

	if err := s.broadcast(ctx, trip.ID, recipients, domain.NotificationMessage, "Message about your trip", text); err != nil {
		return 0, err
	}
	return len(recipients), nil
}

// ListForRecipient returns the newest notifications of a recipient.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	if recipientID == "" {
		return nil, ErrInvalidPassengerID
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	notifications, err := s.store.Repos().Notifications.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return notifications, nil
}

// MarkRead marks a recipient's notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	err := s.store.Repos().Notifications.MarkRead(ctx, id, recipientID, s.clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// broadcast writes one notification per recipient in a single transaction.
func (s *NotificationService) broadcast(ctx context.Context, tripID string, recipients []string, typ domain.NotificationType, title, message string) error {
	if len(recipients) == 0 {
		return nil
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		for _, recipientID := range recipients {
			n := &domain.Notification{
				ID:          uuid.New().String(),
				RecipientID: recipientID,
				TripID:      tripID,
				Type:        typ,
				Title:       title,
				Message:     message,
			}
			if err := repos.Notifications.Create(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recorder.NotificationsSent(string(typ), len(recipients))
	s.logger.Info("notifications written",
		slog.String("type", string(typ)),
		slog.String("trip_id", tripID),
		slog.Int("recipients", len(recipients)))

	return nil
}
