package types

type ImpactSummary struct {
	MealsServed             int `json:"meals_served"`
	ActiveNGOs              int `json:"active_ngos"`
	SuccessfulDistributions int `json:"successful_distributions"`
}

// Overview is the unfiltered administrative view.
type Overview struct {
	FoodPosts []*FoodPost `json:"food_posts"`
	Claims    []*Claim    `json:"claims"`
}

// Listing is what ListForRole returns. Fields a role can't see are left nil.
type Listing struct {
	Role      Role             `json:"role"`
	FoodPosts []*FoodPost      `json:"food_posts"`
	Claims    []*ClaimWithPost `json:"claims,omitempty"`
}
