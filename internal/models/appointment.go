package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Appointment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	DocID         primitive.ObjectID `bson:"docId" json:"docId"`
	SlotDate      string             `bson:"slotDate" json:"slotDate"`
	SlotTime      string             `bson:"slotTime" json:"slotTime"`
	UserData      UserSnapshot       `bson:"userData" json:"userData"`
	DocData       DoctorSnapshot     `bson:"docData" json:"docData"`
	Amount        float64            `bson:"amount" json:"amount"`
	Date          int64              `bson:"date" json:"date"` // creation time, unix ms
	Cancelled     bool               `bson:"cancelled" json:"cancelled"`
	Payment       bool               `bson:"payment" json:"payment"`
	IsCompleted   bool               `bson:"isCompleted" json:"isCompleted"`
	PaymentLinkID string             `bson:"paymentLinkId,omitempty" json:"paymentLinkId,omitempty"`
}
