package regions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DataSource loads and saves the full list of regions.
type DataSource interface {
	LoadAll(ctx context.Context) ([]Region, error)
	SaveAll(ctx context.Context, regions []Region) error
}

// Store persists regions and their networks with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the region tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Region{}, &HotSpot{})
}

// LoadAll returns every region ordered by creation time. An empty store is
// reported as ErrNoDataFound.
func (s *Store) LoadAll(ctx context.Context) ([]Region, error) {
	var out []Region
	err := s.db.WithContext(ctx).
		Preload("Network").
		Order("created, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoDataFound
	}
	return out, nil
}

// SaveAll replaces the stored list with regions in a single transaction.
func (s *Store) SaveAll(ctx context.Context, regions []Region) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&HotSpot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&Region{}).Error; err != nil {
			return err
		}
		if len(regions) == 0 {
			return nil
		}
		rows := make([]Region, len(regions))
		copy(rows, regions)
		for i := range rows {
			rows[i].Network.RegionID = rows[i].ID
		}
		return tx.Create(&rows).Error
	})
	return wrapWrite(err)
}

// Save inserts r or overwrites the stored region with the same id.
func (s *Store) Save(ctx context.Context, r Region) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r.Network.RegionID = r.ID
		if err := tx.Omit("Network").Save(&r).Error; err != nil {
			return err
		}
		// A region owns exactly one network.
		if err := tx.Where("region_id = ? AND id <> ?", r.ID, r.Network.ID).Delete(&HotSpot{}).Error; err != nil {
			return err
		}
		return tx.Save(&r.Network).Error
	})
	return wrapWrite(err)
}

// Find returns one region by id.
func (s *Store) Find(ctx context.Context, id string) (Region, error) {
	var r Region
	err := s.db.WithContext(ctx).Preload("Network").First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Region{}, ErrNotFound
	}
	if err != nil {
		return Region{}, fmt.Errorf("find region %s: %w", id, err)
	}
	return r, nil
}

// Delete removes one region and its network.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("region_id = ?", id).Delete(&HotSpot{}).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrSaveError, err)
		}
		res := tx.Where("id = ?", id).Delete(&Region{})
		if res.Error != nil {
			return fmt.Errorf("%w: %w", ErrSaveError, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// HotSpots lists the home network of every stored region.
func (s *Store) HotSpots(ctx context.Context) ([]HotSpot, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]HotSpot, 0, len(all))
	for _, r := range all {
		out = append(out, r.Network)
	}
	return out, nil
}

func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %w", ErrSaveError, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
