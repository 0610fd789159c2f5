package model

import "time"

// BookingStatus is the lifecycle state of a booking as stored in the
// `bookings.status` column.
type BookingStatus string

const (
	StatusPending   BookingStatus = "Pending"
	StatusConfirmed BookingStatus = "Confirmed"
	StatusCancelled BookingStatus = "Cancelled"
	StatusRejected  BookingStatus = "Rejected"
	StatusInvoiced  BookingStatus = "Invoiced"
)

// transitions lists the allowed edges of the booking lifecycle.
// Confirmed, Cancelled and Rejected are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:  {StatusConfirmed, StatusCancelled, StatusRejected, StatusInvoiced},
	StatusInvoiced: {StatusConfirmed},
}

// Valid reports whether s is a known status value.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusRejected, StatusInvoiced:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether the edge s -> to exists in the
// lifecycle graph. Self-transitions are not edges; idempotent webhook
// replays are handled by the caller checking for them explicitly.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking mirrors the `bookings` table. UID is a UUID string, the
// owning user reference is nullable and backfilled when a user later
// registers with the booking's email.
type Booking struct {
	UID            string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	PickupAddress  string // optional
	DropoffAddress string
	MovingDate     time.Time
	Service        string
	SubServices    []string // stored as JSON
	Description    string
	Status         BookingStatus
	AgreedPrice    string  // string-encoded decimal, "0" until an admin sets it
	UserUID        *string // nullable FK to users.uid, ON DELETE SET NULL
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
