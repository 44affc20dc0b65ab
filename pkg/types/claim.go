package types

import "time"

type ClaimStatus string

const (
	ClaimStatusClaimed     ClaimStatus = "claimed"
	ClaimStatusPicked      ClaimStatus = "picked"
	ClaimStatusDistributed ClaimStatus = "distributed"
	ClaimStatusCancelled   ClaimStatus = "cancelled"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusClaimed, ClaimStatusPicked, ClaimStatusDistributed, ClaimStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the claim still holds its post.
func (s ClaimStatus) Active() bool {
	return s == ClaimStatusClaimed || s == ClaimStatusPicked || s == ClaimStatusDistributed
}

// PostStatus is the FoodPost status that moves in lock-step with s.
func (s ClaimStatus) PostStatus() FoodPostStatus {
	switch s {
	case ClaimStatusClaimed:
		return FoodPostStatusClaimed
	case ClaimStatusPicked:
		return FoodPostStatusPicked
	case ClaimStatusDistributed:
		return FoodPostStatusDistributed
	}
	return FoodPostStatusPosted
}

type Claim struct {
	ID                string            `db:"id" json:"id"`
	FoodPostID        string            `db:"food_post_id" json:"food_post_id"`
	NGOID             string            `db:"ngo_id" json:"ngo_id"`
	Status            ClaimStatus       `db:"status" json:"status"`
	ClaimedAt         time.Time         `db:"claimed_at" json:"claimed_at"`
	PickedAt          *time.Time        `db:"picked_at" json:"picked_at,omitempty"`
	DistributedAt     *time.Time        `db:"distributed_at" json:"distributed_at,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Distribution      *DistributionForm `db:"distribution" json:"distribution,omitempty"`
	PickupCode        *string           `db:"pickup_code" json:"-"`
	PickupRequestedAt *time.Time        `db:"pickup_requested_at" json:"pickup_requested_at,omitempty"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// ClaimWithPost is a claim enriched with the snapshot of its post.
type ClaimWithPost struct {
	*Claim
	FoodPost *FoodPost `json:"food_post"`
}

// DistributionForm is the evidence attached when food is handed out.
type DistributionForm struct {
	Location   string  `json:"location"`
	PeopleFed  int     `json:"people_fed"`
	Date       string  `json:"date,omitempty"`
	Time       *string `json:"time,omitempty"`
	Note       *string `json:"note,omitempty"`
	ProofImage *string `json:"proof_image,omitempty"`
}

// PickupCode is handed to the NGO out of band and echoed back on verify.
type PickupCode struct {
	ClaimID     string    `json:"claim_id"`
	Code        string    `json:"otp"`
	RequestedAt time.Time `json:"requested_at"`
	Reissued    bool      `json:"reissued"`
}
