package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/notification"
	"github.com/frahmantamala/payment-verification/internal/core/events"
)

// RepositoryAPI records every send attempt; the log is append-only.
type RepositoryAPI interface {
	Append(log *notification.Log) error
	Recent(limit int) ([]*notification.Log, error)
}

type Service struct {
	client     *Client
	repo       RepositoryAPI
	adminPhone string
	logger     *slog.Logger
}

func NewService(client *Client, repo RepositoryAPI, adminPhone string, logger *slog.Logger) *Service {
	return &Service{
		client:     client,
		repo:       repo,
		adminPhone: adminPhone,
		logger:     logger,
	}
}

// SetClient attaches the bridge client after construction. The client's
// result callback points back at this service, so the two are built in
// two steps.
func (s *Service) SetClient(client *Client) {
	s.client = client
}

// RecordResult is wired as the client's result callback: one log row per
// attempt, status sent or failed, no automatic retry.
func (s *Service) RecordResult(res SendResult) {
	log := &notification.Log{
		PhoneNumber: res.Job.Recipient,
		Message:     res.Job.Message,
		Status:      notification.StatusSent,
	}
	if res.Err != nil {
		log.Status = notification.StatusFailed
		detail := res.Err.Error()
		log.ErrorDetail = &detail
	}

	if err := s.repo.Append(log); err != nil {
		s.logger.Error("failed to append notification log",
			"error", err,
			"recipient", res.Job.Recipient)
	}
}

// Send queues a message for an arbitrary recipient.
func (s *Service) Send(recipient, text string) error {
	return s.client.Send(recipient, text)
}

// NotifyAdmin pushes an alert to the configured admin number; a missing
// admin number downgrades to a log line.
func (s *Service) NotifyAdmin(text string) error {
	if s.adminPhone == "" {
		s.logger.Warn("no admin phone configured, dropping admin notification", "message", text)
		return nil
	}
	return s.client.Send(s.adminPhone, text)
}

// Subscribe registers the notifier's event handlers on the bus.
func (s *Service) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeVerificationMatched, s.handleVerificationMatched)
	bus.Subscribe(events.EventTypeTransactionUnparsed, s.handleTransactionUnparsed)
}

func (s *Service) handleVerificationMatched(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.VerificationMatchedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	text := fmt.Sprintf("Payment confirmed: order %s paid Tk %s via %s (TrxID %s)",
		e.OrderID, e.Amount, e.Gateway, e.TransactionID)
	return s.NotifyAdmin(text)
}

func (s *Service) handleTransactionUnparsed(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.TransactionUnparsedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload for %s", event.EventType())
	}

	text := fmt.Sprintf("Unrecognized wallet SMS stored for review (id %s, sender %s)",
		e.ExternalID, e.SenderNumber)
	return s.NotifyAdmin(text)
}

// BridgeStatus surfaces the relay connection state.
func (s *Service) BridgeStatus(ctx context.Context) (*BridgeStatus, error) {
	return s.client.Status(ctx)
}

// RecentLogs returns the newest notification log entries for the admin
// console.
func (s *Service) RecentLogs(limit int) ([]*notification.Log, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.Recent(limit)
}
