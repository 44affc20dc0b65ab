package types

import (
	"time"
)

type FoodPostStatus string

const (
	FoodPostStatusPosted      FoodPostStatus = "posted"
	FoodPostStatusClaimed     FoodPostStatus = "claimed"
	FoodPostStatusPicked      FoodPostStatus = "picked"
	FoodPostStatusDistributed FoodPostStatus = "distributed"
)

func (s FoodPostStatus) Valid() bool {
	switch s {
	case FoodPostStatusPosted, FoodPostStatusClaimed, FoodPostStatusPicked, FoodPostStatusDistributed:
		return true
	}
	return false
}

// FoodPost is a donor's offer of surplus food. Posts are never deleted.
type FoodPost struct {
	ID            string         `db:"id" json:"id"`
	DonorID       string         `db:"donor_id" json:"donor_id"`
	FoodType      string         `db:"food_type" json:"food_type"`
	Quantity      string         `db:"quantity" json:"quantity"`
	ExpiryTime    time.Time      `db:"expiry_time" json:"expiry_time"`
	PickupLat     *float64       `db:"pickup_lat" json:"pickup_lat,omitempty"`
	PickupLng     *float64       `db:"pickup_lng" json:"pickup_lng,omitempty"`
	Status        FoodPostStatus `db:"status" json:"status"`
	ClaimedAt     *time.Time     `db:"claimed_at" json:"claimed_at,omitempty"`
	PickedAt      *time.Time     `db:"picked_at" json:"picked_at,omitempty"`
	DistributedAt *time.Time     `db:"distributed_at" json:"distributed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

func (p *FoodPost) HasLocation() bool {
	return p.PickupLat != nil && p.PickupLng != nil
}

func (p *FoodPost) Expired(now time.Time) bool {
	return !p.ExpiryTime.After(now)
}

// NewFoodPost is the donor-supplied part of a FoodPost.
type NewFoodPost struct {
	FoodType   string    `json:"food_type"`
	Quantity   string    `json:"quantity"`
	ExpiryTime time.Time `json:"expiry_time"`
	PickupLat  *float64  `json:"pickup_lat,omitempty"`
	PickupLng  *float64  `json:"pickup_lng,omitempty"`
}

// NearbyQuery narrows the NGO browse pool. Lat and Lng are optional.
type NearbyQuery struct {
	Lat *float64 `form:"lat"`
	Lng *float64 `form:"lng"`
}
