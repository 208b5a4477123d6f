package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Defaults applied to a freshly registered patient.
const (
	DefaultUserImage = "https://res.cloudinary.com/prescripto/image/upload/v1/defaults/profile.png"
	NotSelected      = "Not Selected"
	DefaultPhone     = "0000000000"
)

type Address struct {
	Line1 string `bson:"line1" json:"line1"`
	Line2 string `bson:"line2" json:"line2"`
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash, never serialized
	Image     string             `bson:"image" json:"image"`
	Address   Address            `bson:"address" json:"address"`
	Gender    string             `bson:"gender" json:"gender"`
	DOB       string             `bson:"dob" json:"dob"`
	Phone     string             `bson:"phone" json:"phone"`
	VerifyOTP string             `bson:"verifyOTP" json:"-"`
	OTPExpiry *time.Time         `bson:"otpExpiry,omitempty" json:"-"`
}

// NewUser builds a patient record with the profile defaults filled in.
func NewUser(name, email, passwordHash string) *User {
	return &User{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Email:    email,
		Password: passwordHash,
		Image:    DefaultUserImage,
		Gender:   NotSelected,
		DOB:      NotSelected,
		Phone:    DefaultPhone,
	}
}

// HasPhone reports whether the patient replaced the placeholder phone number.
func (u *User) HasPhone() bool {
	return u.Phone != "" && u.Phone != DefaultPhone
}

// ProfileUpdate carries the fields a patient may overwrite on their profile.
type ProfileUpdate struct {
	Name    string
	Address Address
	Gender  string
	DOB     string
	Phone   string
}

// UserSnapshot is the copy of a patient stored on an appointment at booking time.
type UserSnapshot struct {
	ID      primitive.ObjectID `bson:"_id" json:"_id"`
	Name    string             `bson:"name" json:"name"`
	Email   string             `bson:"email" json:"email"`
	Image   string             `bson:"image" json:"image"`
	Address Address            `bson:"address" json:"address"`
	Gender  string             `bson:"gender" json:"gender"`
	DOB     string             `bson:"dob" json:"dob"`
	Phone   string             `bson:"phone" json:"phone"`
}

func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Image:   u.Image,
		Address: u.Address,
		Gender:  u.Gender,
		DOB:     u.DOB,
		Phone:   u.Phone,
	}
}
