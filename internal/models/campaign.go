package models

// CampaignType selects which fulfillment a confirmed payment produces.
type CampaignType string

const (
	CampaignTypeTicket CampaignType = "ticket"
	CampaignTypeVote   CampaignType = "vote"
)

// Campaign is a sellable ticket or vote campaign. The directory tables are
// owned by the surrounding CRUD layer; this service only reads them.
type Campaign struct {
	BaseModel
	Slug       string       `json:"slug" gorm:"not null;size:100;uniqueIndex"`
	Title      string       `json:"title" gorm:"not null"`
	Type       CampaignType `json:"type" gorm:"not null;size:10"`
	Currency   string       `json:"currency" gorm:"not null;size:3"`
	UnitAmount int64        `json:"unit_amount" gorm:"not null"` // major units per ticket or vote
	MaxPerTxn  int          `json:"max_per_txn" gorm:"not null;default:10"`
	OwnerID    string       `json:"owner_id" gorm:"size:64;index"` // operator that owns the campaign
	IsActive   bool         `json:"is_active" gorm:"default:true"`
}

// Contestant can receive votes in a vote campaign.
type Contestant struct {
	BaseModel
	CampaignID uint   `json:"campaign_id" gorm:"not null;index"`
	Name       string `json:"name" gorm:"not null"`
	Code       string `json:"code" gorm:"size:20"`
}
