package services

import (
	"context"
	"errors"
	"fmt"

	"campaign-payments/internal/models"

	"gorm.io/gorm"
)

// Directory is the read-only campaign catalogue this service depends on.
type Directory interface {
	GetCampaign(ctx context.Context, id uint) (*models.Campaign, error)
	GetCampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error)
	ContestantExists(ctx context.Context, campaignID, contestantID uint) (bool, error)
}

// DirectoryService reads campaigns and contestants from the database
type DirectoryService struct {
	db *gorm.DB
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{db: db}
}

// GetCampaign gets campaign by ID, including inactive ones so that existing
// transactions keep resolving after a campaign closes.
func (s *DirectoryService) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	result := s.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&campaign)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrCampaignNotFound, id)
		}
		return nil, result.Error
	}
	return &campaign, nil
}

// GetCampaignBySlug gets an active campaign by slug
func (s *DirectoryService) GetCampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error) {
	var campaign models.Campaign
	result := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&campaign)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, slug)
		}
		return nil, result.Error
	}
	return &campaign, nil
}

// ContestantExists checks that contestantID belongs to campaignID
func (s *DirectoryService) ContestantExists(ctx context.Context, campaignID, contestantID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Contestant{}).
		Where("id = ? AND campaign_id = ?", contestantID, campaignID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
