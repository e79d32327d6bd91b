package discovery

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/internal/directory"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

// DistanceEstimator reports how far each pool is from origin. Pools absent
// from the result have no known distance.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, tenantID uuid.UUID, origin directory.Shop, pools []models.Pool) (map[uuid.UUID]float64, error)
}

// InitiatorDistance measures the great-circle distance to each pool's
// initiating shop. Shops without a location are skipped.
type InitiatorDistance struct {
	directory directory.Directory
}

func NewInitiatorDistance(dir directory.Directory) (*InitiatorDistance, error) {
	if dir == nil {
		return nil, errDirectoryRequired
	}
	return &InitiatorDistance{directory: dir}, nil
}

func (d *InitiatorDistance) DistanceKm(ctx context.Context, tenantID uuid.UUID, origin directory.Shop, pools []models.Pool) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64, len(pools))
	if origin.Location == nil || len(pools) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(pools))
	for _, pool := range pools {
		ids = append(ids, pool.InitiatorShopID)
	}
	initiators, err := d.directory.Shops(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	for _, pool := range pools {
		initiator, ok := initiators[pool.InitiatorShopID]
		if !ok || initiator.Location == nil {
			continue
		}
		out[pool.ID] = origin.Location.DistanceKm(*initiator.Location)
	}
	return out, nil
}
