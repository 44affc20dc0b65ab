package lifecycle

import (
	"context"

	"feedchain/pkg/types"
)

// Collections is the key-value view of the two record collections plus the
// audit trail. Lookups of missing records return types.ErrFoodPostNotFound or
// types.ErrClaimNotFound. Save replaces the full stored snapshot of a record.
type Collections interface {
	FoodPosts(ctx context.Context) ([]*types.FoodPost, error)
	FoodPost(ctx context.Context, postID string) (*types.FoodPost, error)
	SaveFoodPost(ctx context.Context, post *types.FoodPost) error

	Claims(ctx context.Context) ([]*types.Claim, error)
	Claim(ctx context.Context, claimID string) (*types.Claim, error)
	ClaimsByFoodPost(ctx context.Context, postID string) ([]*types.Claim, error)
	SaveClaim(ctx context.Context, claim *types.Claim) error

	RecordEvent(ctx context.Context, event *types.LifecycleEvent) error
	EventsByFoodPost(ctx context.Context, postID string) ([]*types.LifecycleEvent, error)
}

// Store is a Collections that can run a group of reads and writes as one
// unit. If fn returns an error nothing it wrote is kept.
type Store interface {
	Collections
	Atomic(ctx context.Context, fn func(tx Collections) error) error
}
