// Package memstore keeps food posts, claims and lifecycle events in process
// memory. Atomic units are serialized and their writes are only applied when
// the unit succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"

	"feedchain/internal/lifecycle"
	"feedchain/pkg/types"
)

type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ lifecycle.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx lifecycle.Collections) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txn{
		base:   s.state,
		posts:  make(map[string]*types.FoodPost),
		claims: make(map[string]*types.Claim),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (s *Store) FoodPosts(ctx context.Context) ([]*types.FoodPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.foodPosts(nil), nil
}

func (s *Store) FoodPost(ctx context.Context, postID string) (*types.FoodPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.foodPost(postID)
}

func (s *Store) SaveFoodPost(ctx context.Context, post *types.FoodPost) error {
	return s.Atomic(ctx, func(tx lifecycle.Collections) error {
		return tx.SaveFoodPost(ctx, post)
	})
}

func (s *Store) Claims(ctx context.Context) ([]*types.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.claimList(nil), nil
}

func (s *Store) Claim(ctx context.Context, claimID string) (*types.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.claim(claimID)
}

func (s *Store) ClaimsByFoodPost(ctx context.Context, postID string) ([]*types.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return claimsFor(s.state.claimList(nil), postID), nil
}

func (s *Store) SaveClaim(ctx context.Context, claim *types.Claim) error {
	return s.Atomic(ctx, func(tx lifecycle.Collections) error {
		return tx.SaveClaim(ctx, claim)
	})
}

func (s *Store) RecordEvent(ctx context.Context, event *types.LifecycleEvent) error {
	return s.Atomic(ctx, func(tx lifecycle.Collections) error {
		return tx.RecordEvent(ctx, event)
	})
}

func (s *Store) EventsByFoodPost(ctx context.Context, postID string) ([]*types.LifecycleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.eventsByFoodPost(postID), nil
}

type state struct {
	posts  map[string]*types.FoodPost
	claims map[string]*types.Claim
	events []*types.LifecycleEvent
}

func newState() *state {
	return &state{
		posts:  make(map[string]*types.FoodPost),
		claims: make(map[string]*types.Claim),
	}
}

func (st *state) foodPost(postID string) (*types.FoodPost, error) {
	post, ok := st.posts[postID]
	if !ok {
		return nil, types.ErrFoodPostNotFound
	}
	return clonePost(post), nil
}

// foodPosts lists every post, newest first, with staged overriding stored.
func (st *state) foodPosts(staged map[string]*types.FoodPost) []*types.FoodPost {
	out := make([]*types.FoodPost, 0, len(st.posts)+len(staged))
	for id, post := range st.posts {
		if _, ok := staged[id]; ok {
			continue
		}
		out = append(out, clonePost(post))
	}
	for _, post := range staged {
		out = append(out, clonePost(post))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

func (st *state) claim(claimID string) (*types.Claim, error) {
	claim, ok := st.claims[claimID]
	if !ok {
		return nil, types.ErrClaimNotFound
	}
	return cloneClaim(claim), nil
}

func (st *state) claimList(staged map[string]*types.Claim) []*types.Claim {
	out := make([]*types.Claim, 0, len(st.claims)+len(staged))
	for id, claim := range st.claims {
		if _, ok := staged[id]; ok {
			continue
		}
		out = append(out, cloneClaim(claim))
	}
	for _, claim := range staged {
		out = append(out, cloneClaim(claim))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimedAt.Equal(out[j].ClaimedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ClaimedAt.After(out[j].ClaimedAt)
	})

	return out
}

func claimsFor(claims []*types.Claim, postID string) []*types.Claim {
	out := make([]*types.Claim, 0)
	for _, claim := range claims {
		if claim.FoodPostID == postID {
			out = append(out, claim)
		}
	}
	return out
}

func (st *state) eventsByFoodPost(postID string) []*types.LifecycleEvent {
	out := make([]*types.LifecycleEvent, 0)
	for _, event := range st.events {
		if event.FoodPostID == postID {
			c := *event
			out = append(out, &c)
		}
	}
	return out
}

type txn struct {
	base   *state
	posts  map[string]*types.FoodPost
	claims map[string]*types.Claim
	events []*types.LifecycleEvent
}

func (t *txn) FoodPosts(ctx context.Context) ([]*types.FoodPost, error) {
	return t.base.foodPosts(t.posts), nil
}

func (t *txn) FoodPost(ctx context.Context, postID string) (*types.FoodPost, error) {
	if post, ok := t.posts[postID]; ok {
		return clonePost(post), nil
	}
	return t.base.foodPost(postID)
}

func (t *txn) SaveFoodPost(ctx context.Context, post *types.FoodPost) error {
	t.posts[post.ID] = clonePost(post)
	return nil
}

func (t *txn) Claims(ctx context.Context) ([]*types.Claim, error) {
	return t.base.claimList(t.claims), nil
}

func (t *txn) Claim(ctx context.Context, claimID string) (*types.Claim, error) {
	if claim, ok := t.claims[claimID]; ok {
		return cloneClaim(claim), nil
	}
	return t.base.claim(claimID)
}

func (t *txn) ClaimsByFoodPost(ctx context.Context, postID string) ([]*types.Claim, error) {
	return claimsFor(t.base.claimList(t.claims), postID), nil
}

func (t *txn) SaveClaim(ctx context.Context, claim *types.Claim) error {
	t.claims[claim.ID] = cloneClaim(claim)
	return nil
}

func (t *txn) RecordEvent(ctx context.Context, event *types.LifecycleEvent) error {
	c := *event
	t.events = append(t.events, &c)
	return nil
}

func (t *txn) EventsByFoodPost(ctx context.Context, postID string) ([]*types.LifecycleEvent, error) {
	out := t.base.eventsByFoodPost(postID)
	for _, event := range t.events {
		if event.FoodPostID == postID {
			c := *event
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *txn) commit() {
	for id, post := range t.posts {
		t.base.posts[id] = post
	}
	for id, claim := range t.claims {
		t.base.claims[id] = claim
	}
	t.base.events = append(t.base.events, t.events...)
}

// Records are copied down to their pointer fields so nothing handed out
// aliases stored state.
func clonePost(p *types.FoodPost) *types.FoodPost {
	c := *p
	c.PickupLat = clonePtr(p.PickupLat)
	c.PickupLng = clonePtr(p.PickupLng)
	c.ClaimedAt = clonePtr(p.ClaimedAt)
	c.PickedAt = clonePtr(p.PickedAt)
	c.DistributedAt = clonePtr(p.DistributedAt)
	return &c
}

func cloneClaim(cl *types.Claim) *types.Claim {
	c := *cl
	c.PickedAt = clonePtr(cl.PickedAt)
	c.DistributedAt = clonePtr(cl.DistributedAt)
	c.CancelledAt = clonePtr(cl.CancelledAt)
	c.PickupCode = clonePtr(cl.PickupCode)
	c.PickupRequestedAt = clonePtr(cl.PickupRequestedAt)
	if cl.Distribution != nil {
		d := *cl.Distribution
		d.Time = clonePtr(d.Time)
		d.Note = clonePtr(d.Note)
		d.ProofImage = clonePtr(d.ProofImage)
		c.Distribution = &d
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
