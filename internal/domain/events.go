package domain

import "time"

const TopicKundeCreated = "kunde.created"

type NeuerKundeEvent struct {
	KundeID   string    `json:"kunde_id"`
	Nachname  string    `json:"nachname"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}
