package types

import "time"

// LifecycleEvent records one status transition of a post and its claim.
type LifecycleEvent struct {
	ID         string         `db:"id" json:"id"`
	FoodPostID string         `db:"food_post_id" json:"food_post_id"`
	ClaimID    *string        `db:"claim_id" json:"claim_id,omitempty"`
	ActorID    string         `db:"actor_id" json:"actor_id"`
	FromStatus FoodPostStatus `db:"from_status" json:"from_status"`
	ToStatus   FoodPostStatus `db:"to_status" json:"to_status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
