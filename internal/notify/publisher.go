// Package notify publishes appointment events to Kafka for downstream
// consumers (SMS/e-mail senders, analytics). Publishing is best effort:
// bookings never fail because a broker is down.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/medflowhq/hospital-booking/internal/booking"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaPublisher returns a Publisher backed by a Kafka writer, or nil when
// no brokers are configured; a nil *Publisher is a valid no-op notifier.
func NewKafkaPublisher(brokers, topic string, logger zerolog.Logger) *Publisher {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn().Msg("kafka publishing disabled (no brokers configured)")
		return nil
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      list,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})

	return &Publisher{
		writer: w,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

type appointmentEvent struct {
	Event       string    `json:"event"`
	Appointment string    `json:"appointment_id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Previous    string    `json:"previous_status,omitempty"`
}

func (p *Publisher) AppointmentBooked(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, booking.EventAppointmentBooked, appt, "")
}

func (p *Publisher) AppointmentCancelled(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, booking.EventAppointmentCancelled, appt, "")
}

func (p *Publisher) StatusChanged(ctx context.Context, appt *booking.Appointment, from booking.Status) {
	p.publish(ctx, booking.EventStatusChanged, appt, from)
}

func (p *Publisher) ReminderDue(ctx context.Context, appt *booking.Appointment) {
	p.publish(ctx, booking.EventReminderSent, appt, "")
}

func (p *Publisher) publish(ctx context.Context, eventType string, appt *booking.Appointment, from booking.Status) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(appointmentEvent{
		Event:       eventType,
		Appointment: appt.ID.String(),
		PatientID:   appt.PatientID.String(),
		DoctorID:    appt.DoctorID.String(),
		ScheduledAt: appt.ScheduledAt,
		Status:      string(appt.Status),
		Previous:    string(from),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(appt.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Stringer("appointment_id", appt.ID).
			Msg("failed to publish appointment event")
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
