package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength is the shortest password accepted anywhere in the API.
const MinPasswordLength = 8

// BcryptCost is a variable so tests can run with bcrypt.MinCost.
var BcryptCost = bcrypt.DefaultCost

// HashPassword hashes a given password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with its hashed version.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
