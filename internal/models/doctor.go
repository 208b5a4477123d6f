package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SlotMap maps a calendar date key to the time slots already reserved on it.
type SlotMap map[string][]string

// Has reports whether slotTime is reserved on slotDate.
func (m SlotMap) Has(slotDate, slotTime string) bool {
	for _, t := range m[slotDate] {
		if t == slotTime {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email,omitempty"`
	Password      string             `bson:"password" json:"-"`
	Image         string             `bson:"image" json:"image"`
	Speciality    string             `bson:"speciality" json:"speciality"`
	Degree        string             `bson:"degree" json:"degree"`
	Experience    string             `bson:"experience" json:"experience"`
	About         string             `bson:"about" json:"about"`
	Available     bool               `bson:"available" json:"available"`
	Fees          float64            `bson:"fees" json:"fees"`
	Address       Address            `bson:"address" json:"address"`
	Date          int64              `bson:"date" json:"date"`
	SlotsBooked   SlotMap            `bson:"slots_booked" json:"slots_booked"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
	RatingCount   int                `bson:"ratingCount" json:"ratingCount"`
}

// PublicView returns the doctor as shown to patients: no email.
func (d Doctor) PublicView() Doctor {
	d.Email = ""
	return d
}

// DoctorSnapshot is the copy of a doctor stored on an appointment at booking time.
// The slot map is intentionally left out.
type DoctorSnapshot struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Image         string             `bson:"image" json:"image"`
	Speciality    string             `bson:"speciality" json:"speciality"`
	Degree        string             `bson:"degree" json:"degree"`
	Experience    string             `bson:"experience" json:"experience"`
	About         string             `bson:"about" json:"about"`
	Fees          float64            `bson:"fees" json:"fees"`
	Address       Address            `bson:"address" json:"address"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
	RatingCount   int                `bson:"ratingCount" json:"ratingCount"`
}

func (d *Doctor) Snapshot() DoctorSnapshot {
	return DoctorSnapshot{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		Image:         d.Image,
		Speciality:    d.Speciality,
		Degree:        d.Degree,
		Experience:    d.Experience,
		About:         d.About,
		Fees:          d.Fees,
		Address:       d.Address,
		AverageRating: d.AverageRating,
		RatingCount:   d.RatingCount,
	}
}
