package models

import (
	"time"
)

// TransactionStatus is the lifecycle state of one payment attempt.
// pending is the only non-terminal state.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSuccess   TransactionStatus = "success"
	StatusFailed    TransactionStatus = "failed"
	StatusAbandoned TransactionStatus = "abandoned"
)

// IsTerminal reports whether no further transition may leave this status.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Transaction 支付交易表
// One row per payment attempt; rows are never deleted.
type Transaction struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// 交易标识
	Reference string `json:"reference" gorm:"not null;size:64;uniqueIndex"`
	Provider  string `json:"provider" gorm:"not null;size:20"`

	// 关联字段
	CampaignID   uint         `json:"campaign_id" gorm:"not null;index"`
	CampaignType CampaignType `json:"campaign_type" gorm:"not null;size:10"` // snapshotted at initialization
	ContestantID *uint        `json:"contestant_id,omitempty" gorm:"index"`

	Status TransactionStatus `json:"status" gorm:"not null;size:20;index"`

	// 金额
	Amount   int64  `json:"amount" gorm:"not null"` // major currency units
	Currency string `json:"currency" gorm:"not null;size:3"`
	Quantity int    `json:"quantity" gorm:"not null"`

	// 付款人
	Email     string `json:"email" gorm:"not null;size:255"`
	PayerName string `json:"payer_name,omitempty" gorm:"size:255"`

	// Gateway handoff
	AuthorizationURL string `json:"authorization_url,omitempty" gorm:"size:500"`
	AccessCode       string `json:"access_code,omitempty" gorm:"size:100"`
	GatewayResponse  string `json:"gateway_response,omitempty" gorm:"size:255"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	PaidAt      *time.Time `json:"paid_at,omitempty"` // as reported by the gateway
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty" gorm:"index"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}

// NeedsFulfillment reports a confirmed payment whose side effect has not been
// applied yet.
func (t *Transaction) NeedsFulfillment() bool {
	return t.Status == StatusSuccess && t.FulfilledAt == nil
}
