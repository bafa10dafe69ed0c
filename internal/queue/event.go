// Package queue defines message payloads exchanged over the message
// broker, the publisher that emits them, and the background consumer.
package queue

// ReservationCreatedEvent is published when a new reservation is
// created.  It carries enough for the partner-facing notifier to tell
// the shop owner who booked what, without querying the primary
// database.
type ReservationCreatedEvent struct {
	PartnerID     uint64 `json:"partner_id"`     // shop owner to notify
	ReservationID uint64 `json:"reservation_id"` // the new reservation
	CustomerName  string `json:"customer_name"`  // display name, "guest" when anonymous
	CourseName    string `json:"course_name"`    // booked course
	Date          string `json:"date"`           // YYYY-MM-DD
	Time          string `json:"time"`           // HH:MM
	CreatedAt     string `json:"created_at"`     // RFC 3339
}
