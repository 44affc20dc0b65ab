package lifecycle

import (
	"context"
	"sort"

	"feedchain/pkg/types"
)

func (e *Engine) Post(ctx context.Context, postID string) (*types.FoodPost, error) {
	return e.store.FoodPost(ctx, postID)
}

func (e *Engine) Claim(ctx context.Context, claimID string) (*types.Claim, error) {
	return e.store.Claim(ctx, claimID)
}

// Events returns the audit trail of a post, oldest first.
func (e *Engine) Events(ctx context.Context, postID string) ([]*types.LifecycleEvent, error) {
	if _, err := e.store.FoodPost(ctx, postID); err != nil {
		return nil, err
	}
	return e.store.EventsByFoodPost(ctx, postID)
}

// DonorPosts returns every post owned by donorID, in any status.
func (e *Engine) DonorPosts(ctx context.Context, donorID string) ([]*types.FoodPost, error) {
	posts, err := e.store.FoodPosts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*types.FoodPost, 0)
	for _, post := range posts {
		if post.DonorID == donorID {
			out = append(out, post)
		}
	}

	return out, nil
}

// AvailablePosts is the NGO browse pool: posts in status posted that have
// not expired. With a query point, located posts come first ordered by
// distance, and the configured radius drops located posts that are too far.
func (e *Engine) AvailablePosts(ctx context.Context, q types.NearbyQuery) ([]*types.FoodPost, error) {
	if (q.Lat == nil) != (q.Lng == nil) {
		return nil, types.Validationf("lat and lng must be given together")
	}
	if q.Lat != nil && !validCoordinates(*q.Lat, *q.Lng) {
		return nil, types.Validationf("lat and lng are out of range")
	}

	posts, err := e.store.FoodPosts(ctx)
	if err != nil {
		return nil, err
	}

	now := e.timestamp()

	type candidate struct {
		post     *types.FoodPost
		distance float64
		located  bool
	}

	candidates := make([]candidate, 0, len(posts))
	for _, post := range posts {
		if post.Status != types.FoodPostStatusPosted || post.Expired(now) {
			continue
		}

		c := candidate{post: post}
		if q.Lat != nil && post.HasLocation() {
			c.located = true
			c.distance = distanceKM(*q.Lat, *q.Lng, *post.PickupLat, *post.PickupLng)
			if e.nearbyRadiusKM > 0 && c.distance > e.nearbyRadiusKM {
				continue
			}
		}

		candidates = append(candidates, c)
	}

	if q.Lat != nil {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].located != candidates[j].located {
				return candidates[i].located
			}
			return candidates[i].distance < candidates[j].distance
		})
	}

	out := make([]*types.FoodPost, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.post)
	}

	return out, nil
}

// NGOClaims returns every claim made by ngoID with the current snapshot of
// its post, most recent first.
func (e *Engine) NGOClaims(ctx context.Context, ngoID string) ([]*types.ClaimWithPost, error) {
	claims, err := e.store.Claims(ctx)
	if err != nil {
		return nil, err
	}

	posts, err := e.postsByID(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*types.ClaimWithPost, 0)
	for _, claim := range claims {
		if claim.NGOID != ngoID {
			continue
		}
		out = append(out, &types.ClaimWithPost{Claim: claim, FoodPost: posts[claim.FoodPostID]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClaimedAt.After(out[j].ClaimedAt)
	})

	return out, nil
}

func (e *Engine) Overview(ctx context.Context) (*types.Overview, error) {
	posts, err := e.store.FoodPosts(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := e.store.Claims(ctx)
	if err != nil {
		return nil, err
	}

	return &types.Overview{FoodPosts: posts, Claims: claims}, nil
}

// ListForRole is the role-scoped read: donors get their own posts, NGOs get
// the browse pool and their own claims, admins get everything.
func (e *Engine) ListForRole(ctx context.Context, actor types.Actor) (*types.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	listing := &types.Listing{Role: actor.Role}

	switch actor.Role {
	case types.RoleDonor:
		posts, err := e.DonorPosts(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		listing.FoodPosts = posts

	case types.RoleNGO:
		posts, err := e.AvailablePosts(ctx, types.NearbyQuery{})
		if err != nil {
			return nil, err
		}
		claims, err := e.NGOClaims(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		listing.FoodPosts = posts
		listing.Claims = claims

	case types.RoleAdmin:
		overview, err := e.Overview(ctx)
		if err != nil {
			return nil, err
		}
		posts := make(map[string]*types.FoodPost, len(overview.FoodPosts))
		for _, post := range overview.FoodPosts {
			posts[post.ID] = post
		}
		listing.FoodPosts = overview.FoodPosts
		listing.Claims = make([]*types.ClaimWithPost, 0, len(overview.Claims))
		for _, claim := range overview.Claims {
			listing.Claims = append(listing.Claims, &types.ClaimWithPost{Claim: claim, FoodPost: posts[claim.FoodPostID]})
		}
	}

	return listing, nil
}

func (e *Engine) postsByID(ctx context.Context) (map[string]*types.FoodPost, error) {
	posts, err := e.store.FoodPosts(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.FoodPost, len(posts))
	for _, post := range posts {
		byID[post.ID] = post
	}

	return byID, nil
}
