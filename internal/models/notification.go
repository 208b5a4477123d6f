package models

import "time"

type NotificationKind string

const (
	KindWelcomeUser       NotificationKind = "welcome_user"
	KindWelcomeDoctor     NotificationKind = "welcome_doctor"
	KindAppointmentBooked NotificationKind = "appointment_booked"
	KindAppointmentSMS    NotificationKind = "appointment_booked_sms"
	KindPaymentReceipt    NotificationKind = "payment_receipt"
	KindPasswordOTP       NotificationKind = "password_otp"
	KindPasswordChanged   NotificationKind = "password_changed"
	KindContactInquiry    NotificationKind = "contact_inquiry"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	NotificationPending = "pending"
	NotificationSending = "sending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is an outbox entry. It is written after the primary change and
// delivered out of band by the dispatcher.
type Notification struct {
	ID        string            `bson:"_id" json:"id"`
	Kind      NotificationKind  `bson:"kind" json:"kind"`
	Channel   Channel           `bson:"channel" json:"channel"`
	To        string            `bson:"to" json:"to"`
	Subject   string            `bson:"subject" json:"subject"`
	Body      string            `bson:"body" json:"body"`
	Data      map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	Status    string            `bson:"status" json:"status"`
	Attempts  int               `bson:"attempts" json:"attempts"`
	LastError string            `bson:"lastError,omitempty" json:"lastError,omitempty"`
	// LeaseEnd is set while a worker holds the entry in the sending state.
	LeaseEnd  *time.Time        `bson:"leaseEnd,omitempty" json:"leaseEnd,omitempty"`
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt"`
	SentAt    *time.Time        `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
}
