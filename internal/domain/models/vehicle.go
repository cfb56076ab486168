package models

import "time"

type Vehicle struct {
	ID                 int64     `json:"id"`
	OwnerID            int64     `json:"owner_id"`
	Type               string    `json:"type"`
	Capacity           int64     `json:"capacity"`
	RegistrationNumber string    `json:"registration_number"`
	CreatedAt          time.Time `json:"created_at"`
}
