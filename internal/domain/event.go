package domain

import "time"

// TradeUpdated announces that a trade's dataset was replaced.
type TradeUpdated struct {
	ImportID   string    `json:"import_id"`
	Trade      Trade     `json:"trade"`
	States     int       `json:"states"`
	Missing    []string  `json:"missing,omitempty"`
	ClassCodes []string  `json:"class_codes"`
	ImportedAt time.Time `json:"imported_at"`
}

// TradeDeleted announces that a trade's dataset was removed.
type TradeDeleted struct {
	Trade     Trade     `json:"trade"`
	Rows      int       `json:"rows"`
	DeletedAt time.Time `json:"deleted_at"`
}
