package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

type Review struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User        primitive.ObjectID `bson:"user" json:"user"`
	Doctor      primitive.ObjectID `bson:"doctor" json:"doctor"`
	Appointment primitive.ObjectID `bson:"appointment" json:"appointment"`
	Rating      int                `bson:"rating" json:"rating"`
	Comment     string             `bson:"comment" json:"comment"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ReviewerInfo and ReviewDoctorInfo are the display fields joined onto a review.
type ReviewerInfo struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Image string             `json:"image"`
}

type ReviewDoctorInfo struct {
	ID         primitive.ObjectID `json:"_id"`
	Name       string             `json:"name"`
	Speciality string             `json:"speciality"`
	Image      string             `json:"image"`
}

// ReviewView is a review joined with reviewer and doctor display fields.
type ReviewView struct {
	ID          primitive.ObjectID `json:"_id"`
	User        *ReviewerInfo      `json:"user"`
	Doctor      *ReviewDoctorInfo  `json:"doctor"`
	Appointment primitive.ObjectID `json:"appointment"`
	Rating      int                `json:"rating"`
	Comment     string             `json:"comment"`
	CreatedAt   time.Time          `json:"createdAt"`
}
