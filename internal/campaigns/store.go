package campaigns

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchSize is the row count per insert/upsert chunk. Chunks commit
// independently so a failure mid-run leaves earlier chunks in place;
// both writers are idempotent, so a retry heals the gap.
const BatchSize = 500

// ErrSnapshotNotFound means a campaign has never been provisioned
// through the bulk pipeline.
var ErrSnapshotNotFound = errors.New("no snapshot for campaign")

// PersistenceError reports a batch write that failed partway through.
// Committed counts the rows already durable before the failing chunk.
type PersistenceError struct {
	Committed int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("batch write failed after %d committed rows: %v", e.Committed, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the persistence surface the provisioner and linker depend
// on. The gorm implementation below is the only production one; tests
// substitute in-memory fakes.
type Store interface {
	EnsureCampaign(ctx context.Context, campaignID, ownerID uuid.UUID) error
	ListAddresses(ctx context.Context, campaignID uuid.UUID) ([]CanonicalAddress, error)
	ReplaceAddresses(ctx context.Context, campaignID uuid.UUID, rows []CanonicalAddress) (int, error)
	UpsertLinks(ctx context.Context, links []BuildingAddressLink) (int, error)
	ListLinks(ctx context.Context, campaignID uuid.UUID, matchTypes []string) ([]BuildingAddressLink, error)
	SetProvisionStatus(ctx context.Context, campaignID uuid.UUID, status string) error
	RecordProvision(ctx context.Context, entry ProvisionLog) error
	SaveSnapshot(ctx context.Context, snap CampaignSnapshot) error
	GetSnapshot(ctx context.Context, campaignID uuid.UUID) (CampaignSnapshot, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// EnsureCampaign creates the campaign row if the surrounding platform
// has not already; an existing row is left untouched.
func (s *gormStore) EnsureCampaign(ctx context.Context, campaignID, ownerID uuid.UUID) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&Campaign{
		ID:              campaignID,
		OwnerID:         ownerID,
		ProvisionStatus: ProvisionPending,
	}).Error
	if err != nil {
		return fmt.Errorf("ensuring campaign row: %w", err)
	}
	return nil
}

func (s *gormStore) ListAddresses(ctx context.Context, campaignID uuid.UUID) ([]CanonicalAddress, error) {
	var rows []CanonicalAddress
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing campaign addresses: %w", err)
	}
	return rows, nil
}

// ReplaceAddresses deletes the campaign's address set and re-inserts
// rows in chunks. Returns the number of rows committed.
func (s *gormStore) ReplaceAddresses(ctx context.Context, campaignID uuid.UUID, rows []CanonicalAddress) (int, error) {
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Delete(&CanonicalAddress{}).Error
	if err != nil {
		return 0, fmt.Errorf("clearing campaign addresses: %w", err)
	}

	committed := 0
	for start := 0; start < len(rows); start += BatchSize {
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		if err := s.db.WithContext(ctx).Create(&chunk).Error; err != nil {
			return committed, &PersistenceError{Committed: committed, Err: err}
		}
		committed += len(chunk)
	}
	return committed, nil
}

// UpsertLinks writes links in chunks, overwriting any existing link for
// the same (campaign_id, address_id). Returns the rows committed.
func (s *gormStore) UpsertLinks(ctx context.Context, links []BuildingAddressLink) (int, error) {
	committed := 0
	for start := 0; start < len(links); start += BatchSize {
		end := start + BatchSize
		if end > len(links) {
			end = len(links)
		}
		chunk := links[start:end]
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "address_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"building_id", "match_type", "confidence",
				"distance_meters", "street_match_score",
				"building_area_sqm", "building_class", "building_height_m",
				"release_tag", "updated_at",
			}),
		}).Create(&chunk).Error
		if err != nil {
			return committed, &PersistenceError{Committed: committed, Err: err}
		}
		committed += len(chunk)
	}
	return committed, nil
}

func (s *gormStore) ListLinks(ctx context.Context, campaignID uuid.UUID, matchTypes []string) ([]BuildingAddressLink, error) {
	var links []BuildingAddressLink
	q := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID)
	if len(matchTypes) > 0 {
		q = q.Where("match_type = ANY(?)", pq.Array(matchTypes))
	}
	if err := q.Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("listing building links: %w", err)
	}
	return links, nil
}

func (s *gormStore) SetProvisionStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	err := s.db.WithContext(ctx).
		Model(&Campaign{}).
		Where("id = ?", campaignID).
		Update("provision_status", status).Error
	if err != nil {
		return fmt.Errorf("updating provision status: %w", err)
	}
	return nil
}

func (s *gormStore) RecordProvision(ctx context.Context, entry ProvisionLog) error {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("recording provision log: %w", err)
	}
	return nil
}

func (s *gormStore) SaveSnapshot(ctx context.Context, snap CampaignSnapshot) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"addresses_key", "buildings_key", "release_tag", "updated_at",
		}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("saving campaign snapshot: %w", err)
	}
	return nil
}

func (s *gormStore) GetSnapshot(ctx context.Context, campaignID uuid.UUID) (CampaignSnapshot, error) {
	var snap CampaignSnapshot
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CampaignSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return CampaignSnapshot{}, fmt.Errorf("loading campaign snapshot: %w", err)
	}
	return snap, nil
}
