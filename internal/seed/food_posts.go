package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"feedchain/internal/lifecycle"
	"feedchain/pkg/types"
)

type fakeActorSeed struct {
	ID   string
	Name string
	Role types.Role
	Lat  float64
	Lng  float64
}

// Fake donors and NGOs spread around Bengaluru.
var fakeActors = []fakeActorSeed{
	{ID: "11111111-1111-1111-1111-111111111111", Name: "Annapoorna Caterers", Role: types.RoleDonor, Lat: 12.9716, Lng: 77.5946},
	{ID: "22222222-2222-2222-2222-222222222222", Name: "Green Leaf Hotel", Role: types.RoleDonor, Lat: 12.9352, Lng: 77.6245},
	{ID: "33333333-3333-3333-3333-333333333333", Name: "Campus Canteen", Role: types.RoleDonor, Lat: 13.0358, Lng: 77.5970},
	{ID: "44444444-4444-4444-4444-444444444444", Name: "City Bakery", Role: types.RoleDonor, Lat: 12.9081, Lng: 77.6476},
	{ID: "55555555-5555-5555-5555-555555555555", Name: "Roti Bank", Role: types.RoleNGO},
	{ID: "66666666-6666-6666-6666-666666666666", Name: "Feeding Hands", Role: types.RoleNGO},
	{ID: "77777777-7777-7777-7777-777777777777", Name: "Night Shelter Trust", Role: types.RoleNGO},
}

var fakeFoods = []struct {
	FoodType string
	Quantity string
}{
	{"Veg biryani", "40 plates"},
	{"Chapati and dal", "25 portions"},
	{"Idli and sambar", "60 pieces"},
	{"Fresh bread loaves", "15 loaves"},
	{"Mixed fruit", "8 kg"},
	{"Curd rice", "30 boxes"},
	{"Vegetable pulao", "20 plates"},
}

var fakeLocations = []string{
	"Shelter A, Majestic",
	"Government school, Shivajinagar",
	"Community hall, Koramangala",
	"Old age home, Jayanagar",
}

type weightedStage struct {
	Status types.FoodPostStatus
	Weight int
}

var weightedStages = []weightedStage{
	{Status: types.FoodPostStatusPosted, Weight: 45},
	{Status: types.FoodPostStatusClaimed, Weight: 20},
	{Status: types.FoodPostStatusPicked, Weight: 10},
	{Status: types.FoodPostStatusDistributed, Weight: 25},
}

// Result counts the posts seeded per final status.
type Result map[types.FoodPostStatus]int

// Actors returns the fake identities used by the seed, for minting tokens.
func Actors() []types.Actor {
	out := make([]types.Actor, 0, len(fakeActors))
	for _, a := range fakeActors {
		out = append(out, types.Actor{UserID: a.ID, Role: a.Role})
	}
	return out
}

// SeedFoodPosts creates count posts from the fake donors and walks each one
// through the engine to a randomly weighted status.
func SeedFoodPosts(ctx context.Context, engine *lifecycle.Engine, count int, rng *rand.Rand) (Result, error) {
	result := make(Result)
	if count <= 0 {
		return result, nil
	}

	donors := actorsWithRole(types.RoleDonor)
	ngos := actorsWithRole(types.RoleNGO)

	for i := 0; i < count; i++ {
		donor := donors[rng.Intn(len(donors))]
		food := fakeFoods[rng.Intn(len(fakeFoods))]

		in := types.NewFoodPost{
			FoodType:   food.FoodType,
			Quantity:   food.Quantity,
			ExpiryTime: time.Now().Add(time.Duration(2+rng.Intn(22)) * time.Hour),
		}

		// Most posts carry a pickup point near their donor.
		if rng.Intn(100) < 80 {
			lat := donor.Lat + (rng.Float64()-0.5)*0.02
			lng := donor.Lng + (rng.Float64()-0.5)*0.02
			in.PickupLat, in.PickupLng = &lat, &lng
		}

		post, err := engine.CreatePost(ctx, types.Actor{UserID: donor.ID, Role: donor.Role}, in)
		if err != nil {
			return result, fmt.Errorf("failed to create fake food post %d: %w", i+1, err)
		}

		target := pickWeightedStage(rng)
		if err := advanceTo(ctx, engine, post, target, ngos[rng.Intn(len(ngos))], rng); err != nil {
			return result, fmt.Errorf("failed to advance fake food post %s to %s: %w", post.ID, target, err)
		}

		result[target]++
	}

	return result, nil
}

func advanceTo(ctx context.Context, engine *lifecycle.Engine, post *types.FoodPost, target types.FoodPostStatus, ngoSeed fakeActorSeed, rng *rand.Rand) error {
	if target == types.FoodPostStatusPosted {
		return nil
	}

	ngo := types.Actor{UserID: ngoSeed.ID, Role: ngoSeed.Role}

	claim, err := engine.ClaimPost(ctx, ngo, post.ID)
	if err != nil {
		return err
	}
	if target == types.FoodPostStatusClaimed {
		return nil
	}

	code, err := engine.StartPickup(ctx, ngo, claim.ID)
	if err != nil {
		return err
	}
	if _, err := engine.VerifyPickup(ctx, ngo, claim.ID, code.Code); err != nil {
		return err
	}
	if target == types.FoodPostStatusPicked {
		return nil
	}

	_, err = engine.Distribute(ctx, ngo, claim.ID, types.DistributionForm{
		Location:  fakeLocations[rng.Intn(len(fakeLocations))],
		PeopleFed: 5 + rng.Intn(60),
	})
	return err
}

func actorsWithRole(role types.Role) []fakeActorSeed {
	out := make([]fakeActorSeed, 0, len(fakeActors))
	for _, a := range fakeActors {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

func pickWeightedStage(rng *rand.Rand) types.FoodPostStatus {
	total := 0
	for _, item := range weightedStages {
		total += item.Weight
	}

	roll := rng.Intn(total)
	running := 0
	for _, item := range weightedStages {
		running += item.Weight
		if roll < running {
			return item.Status
		}
	}

	return types.FoodPostStatusPosted
}
