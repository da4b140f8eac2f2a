package models

import (
	"time"
)

// TicketIssuance records the tickets issued for one confirmed transaction.
// The unique reference makes issuance idempotent.
type TicketIssuance struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Reference  string    `json:"reference" gorm:"not null;size:64;uniqueIndex"`
	CampaignID uint      `json:"campaign_id" gorm:"not null;index"`
	Quantity   int       `json:"quantity" gorm:"not null"`
	IssuedAt   time.Time `json:"issued_at" gorm:"not null"`
}

// TableName 指定表名
func (TicketIssuance) TableName() string {
	return "ticket_issuances"
}

// VoteTally records the votes one confirmed transaction added to a contestant.
type VoteTally struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Reference    string    `json:"reference" gorm:"not null;size:64;uniqueIndex"`
	CampaignID   uint      `json:"campaign_id" gorm:"not null;index"`
	ContestantID uint      `json:"contestant_id" gorm:"not null;index"`
	Votes        int       `json:"votes" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
}

// TableName 指定表名
func (VoteTally) TableName() string {
	return "vote_tallies"
}
