package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/klinikflow/klinikflow/services/notification-service/internal/email"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/outbox"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/sms"
	"github.com/klinikflow/klinikflow/services/notification-service/internal/storage"
)

// BookingPayload mirrors the event body emitted when a public booking commits.
type BookingPayload struct {
	AppointmentID string `json:"appointmentId"`
	OwnerUID      string `json:"ownerUid"`
	ClinicSlug    string `json:"clinicSlug"`
	ClinicName    string `json:"clinicName"`
	StaffUID      string `json:"staffUid"`
	ServiceID     string `json:"serviceId"`
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName"`
	ClientEmail   string `json:"clientEmail"`
	ClientPhone   string `json:"clientPhone"`
	StartISO      string `json:"startIso"`
	EndISO        string `json:"endIso"`
	StartDate     string `json:"startDate"`
	StartTime     string `json:"startTime"`
}

type NotificationStore interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type EventWriter interface {
	Enqueue(ctx context.Context, evt outbox.Event) error
}

// Processor turns committed bookings into booking-received messages for the
// client. Malformed payloads are dropped, not retried; delivery failures are
// recorded and surfaced on the failed topic without touching the booking path.
type Processor struct {
	logger     *slog.Logger
	store      NotificationStore
	events     EventWriter
	email      email.Sender
	sms        sms.Sender
	failSuffix string
}

func NewProcessor(logger *slog.Logger, store NotificationStore, events EventWriter, emailSender email.Sender, smsSender sms.Sender, failSuffix string) *Processor {
	return &Processor{
		logger:     logger,
		store:      store,
		events:     events,
		email:      emailSender,
		sms:        smsSender,
		failSuffix: failSuffix,
	}
}

// Handle satisfies consumer.Handler. The email confirmation is mandatory;
// an SMS copy goes out only when the booking carried a phone number.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	var payload BookingPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		p.logger.Error("invalid booking payload", "err", err)
		return nil
	}
	if payload.AppointmentID == "" || payload.OwnerUID == "" || payload.ClientEmail == "" || payload.StartDate == "" || payload.StartTime == "" {
		p.logger.Error("missing booking fields", "appointment_id", payload.AppointmentID)
		return nil
	}

	if err := p.deliver(ctx, payload, "email", payload.ClientEmail); err != nil {
		return err
	}
	if strings.TrimSpace(payload.ClientPhone) != "" {
		if err := p.deliver(ctx, payload, "sms", payload.ClientPhone); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, payload BookingPayload, channel string, recipient string) error {
	status := "sent"
	providerID := ""
	reason := ""

	if p.failSuffix != "" && strings.HasSuffix(recipient, p.failSuffix) {
		status = "failed"
		reason = "simulated failure"
	}

	if status == "sent" {
		var err error
		switch channel {
		case "email":
			err = p.email.Send(recipient, Subject(payload), EmailBody(payload))
			providerID = "smtp"
		case "sms":
			err = p.sms.Send(ctx, recipient, SMSBody(payload))
			providerID = p.sms.ProviderID()
		}
		if err != nil {
			status = "failed"
			reason = err.Error()
			providerID = ""
			p.logger.Error("delivery failed", "channel", channel, "recipient", recipient, "err", err)
		}
	}

	if err := p.store.Insert(ctx, storage.Notification{
		AppointmentID: payload.AppointmentID,
		OwnerUID:      payload.OwnerUID,
		Channel:       channel,
		Recipient:     recipient,
		Payload: map[string]any{
			"clinicSlug": payload.ClinicSlug,
			"clinicName": payload.ClinicName,
			"clientId":   payload.ClientID,
			"startIso":   payload.StartISO,
		},
		Status: status,
	}); err != nil {
		p.logger.Error("failed to persist notification", "err", err)
		return err
	}

	if status == "failed" {
		return p.writeFailed(ctx, payload, channel, reason)
	}
	return p.writeSent(ctx, payload, channel, providerID)
}

func (p *Processor) writeSent(ctx context.Context, payload BookingPayload, channel string, providerID string) error {
	if providerID == "" {
		providerID = "unknown"
	}
	eventPayload, err := json.Marshal(map[string]any{
		"appointmentId": payload.AppointmentID,
		"ownerUid":      payload.OwnerUID,
		"channel":       channel,
		"providerId":    providerID,
		"sentAt":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := p.events.Enqueue(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     outbox.TopicNotificationSent,
		Payload:       eventPayload,
	}); err != nil {
		p.logger.Error("failed to enqueue notification.sent", "err", err)
		return err
	}
	p.logger.Info("booking notification sent", "appointment_id", payload.AppointmentID, "channel", channel)
	return nil
}

func (p *Processor) writeFailed(ctx context.Context, payload BookingPayload, channel string, reason string) error {
	eventPayload, err := json.Marshal(map[string]any{
		"appointmentId": payload.AppointmentID,
		"ownerUid":      payload.OwnerUID,
		"channel":       channel,
		"errorReason":   reason,
		"failedAt":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := p.events.Enqueue(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     outbox.TopicNotificationFailed,
		Payload:       eventPayload,
	}); err != nil {
		p.logger.Error("failed to enqueue notification.failed", "err", err)
		return err
	}
	p.logger.Info("booking notification failed", "appointment_id", payload.AppointmentID, "channel", channel, "reason", reason)
	return nil
}

// Subject is the confirmation subject line shown to the client.
func Subject(p BookingPayload) string {
	clinic := strings.TrimSpace(p.ClinicName)
	if clinic == "" {
		return "Vi har modtaget din booking"
	}
	return "Vi har modtaget din booking hos " + clinic
}

func EmailBody(p BookingPayload) string {
	clinic := clinicOrDefault(p)
	var b strings.Builder
	if name := strings.TrimSpace(p.ClientName); name != "" {
		fmt.Fprintf(&b, "Hej %s,\n\n", name)
	} else {
		b.WriteString("Hej,\n\n")
	}
	fmt.Fprintf(&b, "Vi har modtaget din booking hos %s den %s kl. %s.\n", clinic, p.StartDate, p.StartTime)
	b.WriteString("Du hører fra os, når tiden er bekræftet.\n\n")
	fmt.Fprintf(&b, "Venlig hilsen\n%s\n", clinic)
	return b.String()
}

func SMSBody(p BookingPayload) string {
	return fmt.Sprintf("Vi har modtaget din booking hos %s den %s kl. %s.", clinicOrDefault(p), p.StartDate, p.StartTime)
}

func clinicOrDefault(p BookingPayload) string {
	if clinic := strings.TrimSpace(p.ClinicName); clinic != "" {
		return clinic
	}
	return "klinikken"
}
