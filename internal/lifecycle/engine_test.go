package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"feedchain/internal/lifecycle"
	"feedchain/internal/memstore"
	"feedchain/internal/utils"
	"feedchain/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	donor = types.Actor{UserID: "donor-1", Role: types.RoleDonor}
	ngoA  = types.Actor{UserID: "ngo-a", Role: types.RoleNGO}
	ngoB  = types.Actor{UserID: "ngo-b", Role: types.RoleNGO}
	admin = types.Actor{UserID: "admin-1", Role: types.RoleAdmin}
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	engine *lifecycle.Engine
	store  *memstore.Store
	clock  *clock
	reg    *prometheus.Registry
	logs   *logtest.Hook
}

func newFixture(t *testing.T, opts ...lifecycle.Option) *fixture {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store: memstore.New(),
		clock: &clock{now: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)},
		reg:   prometheus.NewRegistry(),
		logs:  hook,
	}

	base := []lifecycle.Option{
		lifecycle.WithClock(f.clock.Now),
		lifecycle.WithCodeGenerator(func() (string, error) { return "482913", nil }),
		lifecycle.WithRegisterer(f.reg),
	}

	f.engine = lifecycle.New(f.store, logger, append(base, opts...)...)
	return f
}

func (f *fixture) post(t *testing.T) *types.FoodPost {
	t.Helper()

	post, err := f.engine.CreatePost(context.Background(), donor, types.NewFoodPost{
		FoodType:   "Cooked rice",
		Quantity:   "20 plates",
		ExpiryTime: f.clock.now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) claimed(t *testing.T, actor types.Actor) (*types.FoodPost, *types.Claim) {
	t.Helper()

	post := f.post(t)
	claim, err := f.engine.ClaimPost(context.Background(), actor, post.ID)
	require.NoError(t, err)
	return post, claim
}

func (f *fixture) picked(t *testing.T, actor types.Actor) (*types.FoodPost, *types.Claim) {
	t.Helper()
	ctx := context.Background()

	post, claim := f.claimed(t, actor)
	code, err := f.engine.StartPickup(ctx, actor, claim.ID)
	require.NoError(t, err)
	claim, err = f.engine.VerifyPickup(ctx, actor, claim.ID, code.Code)
	require.NoError(t, err)
	return post, claim
}

func (f *fixture) mustPost(t *testing.T, id string) *types.FoodPost {
	t.Helper()
	post, err := f.store.FoodPost(context.Background(), id)
	require.NoError(t, err)
	return post
}

func (f *fixture) mustClaim(t *testing.T, id string) *types.Claim {
	t.Helper()
	claim, err := f.store.Claim(context.Background(), id)
	require.NoError(t, err)
	return claim
}

func TestEngine_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post := f.post(t)
	assert.Equal(t, types.FoodPostStatusPosted, post.Status)
	assert.Equal(t, donor.UserID, post.DonorID)

	claim, err := f.engine.ClaimPost(ctx, ngoA, post.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusClaimed, claim.Status)
	assert.Equal(t, types.FoodPostStatusClaimed, f.mustPost(t, post.ID).Status)

	code, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "482913", code.Code)
	assert.False(t, code.Reissued)

	_, err = f.engine.VerifyPickup(ctx, ngoA, claim.ID, "000000")
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, types.ClaimStatusClaimed, f.mustClaim(t, claim.ID).Status)
	assert.Equal(t, types.FoodPostStatusClaimed, f.mustPost(t, post.ID).Status)

	f.clock.Advance(10 * time.Minute)
	picked, err := f.engine.VerifyPickup(ctx, ngoA, claim.ID, code.Code)
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusPicked, picked.Status)

	storedPost := f.mustPost(t, post.ID)
	storedClaim := f.mustClaim(t, claim.ID)
	assert.Equal(t, types.FoodPostStatusPicked, storedPost.Status)
	assert.Equal(t, types.ClaimStatusPicked, storedClaim.Status)
	require.NotNil(t, storedPost.PickedAt)
	require.NotNil(t, storedClaim.PickedAt)
	assert.True(t, storedPost.PickedAt.Equal(*storedClaim.PickedAt))
	assert.Nil(t, storedClaim.PickupCode)

	f.clock.Advance(time.Hour)
	distributed, err := f.engine.Distribute(ctx, ngoA, claim.ID, types.DistributionForm{Location: "Shelter A", PeopleFed: 10})
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusDistributed, distributed.Status)
	require.NotNil(t, distributed.Distribution)
	assert.Equal(t, "2026-10-17", distributed.Distribution.Date)

	storedPost = f.mustPost(t, post.ID)
	storedClaim = f.mustClaim(t, claim.ID)
	assert.Equal(t, types.FoodPostStatusDistributed, storedPost.Status)
	assert.Equal(t, types.ClaimStatusDistributed, storedClaim.Status)
	assert.True(t, storedPost.DistributedAt.Equal(*storedClaim.DistributedAt))

	summary, err := f.engine.SummarizeImpact(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.MealsServed, 10)
	assert.Equal(t, 1, summary.SuccessfulDistributions)
	assert.Equal(t, 1, summary.ActiveNGOs)

	events, err := f.engine.Events(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, types.FoodPostStatus(""), events[0].FromStatus)
	assert.Equal(t, types.FoodPostStatusPosted, events[0].ToStatus)
	assert.Equal(t, types.FoodPostStatusClaimed, events[1].ToStatus)
	assert.Equal(t, types.FoodPostStatusPicked, events[2].ToStatus)
	assert.Equal(t, types.FoodPostStatusDistributed, events[3].ToStatus)
	assert.Equal(t, ngoA.UserID, events[3].ActorID)
	require.NotNil(t, events[3].ClaimID)
	assert.Equal(t, claim.ID, *events[3].ClaimID)

	assert.Equal(t, 1.0, f.counter(t, "feedchain_lifecycle_transitions_total", map[string]string{"from": "picked", "to": "distributed"}))
	assert.Equal(t, 1.0, f.counter(t, "feedchain_lifecycle_rejections_total", map[string]string{"operation": "verify_pickup", "kind": "unauthorized"}))
}

// counter reads a counter from the fixture registry. Missing series read as 0.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := f.reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, l := range m.GetLabel() {
				got[l.GetName()] = l.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}

	return 0
}

func TestEngine_CreatePostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.now

	tests := []struct {
		name string
		in   types.NewFoodPost
	}{
		{"missing food type", types.NewFoodPost{Quantity: "1 kg", ExpiryTime: now.Add(time.Hour)}},
		{"blank quantity", types.NewFoodPost{FoodType: "Bread", Quantity: "   ", ExpiryTime: now.Add(time.Hour)}},
		{"missing expiry", types.NewFoodPost{FoodType: "Bread", Quantity: "1 kg"}},
		{"expiry too soon", types.NewFoodPost{FoodType: "Bread", Quantity: "1 kg", ExpiryTime: now.Add(29 * time.Minute)}},
		{"expiry in past", types.NewFoodPost{FoodType: "Bread", Quantity: "1 kg", ExpiryTime: now.Add(-time.Hour)}},
		{"lat without lng", types.NewFoodPost{FoodType: "Bread", Quantity: "1 kg", ExpiryTime: now.Add(time.Hour), PickupLat: utils.Float64Ptr(12.9)}},
		{"lat out of range", types.NewFoodPost{FoodType: "Bread", Quantity: "1 kg", ExpiryTime: now.Add(time.Hour), PickupLat: utils.Float64Ptr(91), PickupLng: utils.Float64Ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreatePost(ctx, donor, tt.in)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	posts, err := f.store.FoodPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	t.Run("exactly thirty minutes ahead is accepted", func(t *testing.T) {
		post, err := f.engine.CreatePost(ctx, donor, types.NewFoodPost{
			FoodType:   "Bread",
			Quantity:   "1 kg",
			ExpiryTime: now.Add(30 * time.Minute),
			PickupLat:  utils.Float64Ptr(12.97),
			PickupLng:  utils.Float64Ptr(77.59),
		})
		require.NoError(t, err)
		assert.True(t, post.HasLocation())
		assert.Equal(t, now, post.CreatedAt)
	})
}

func TestEngine_RejectsMissingIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreatePost(ctx, types.Actor{}, types.NewFoodPost{FoodType: "Bread", Quantity: "1", ExpiryTime: f.clock.now.Add(time.Hour)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	post := f.post(t)
	_, err = f.engine.ClaimPost(ctx, types.Actor{UserID: "x", Role: "volunteer"}, post.ID)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestEngine_ClaimPost(t *testing.T) {
	ctx := context.Background()

	t.Run("second claim conflicts and creates nothing", func(t *testing.T) {
		f := newFixture(t)
		post, first := f.claimed(t, ngoA)

		_, err := f.engine.ClaimPost(ctx, ngoB, post.ID)
		require.ErrorIs(t, err, types.ErrConflict)
		assert.EqualError(t, err, "post not available for claiming")

		claims, err := f.store.Claims(ctx)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, first.ID, claims[0].ID)
	})

	t.Run("missing post conflicts", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.ClaimPost(ctx, ngoA, "nope")
		assert.ErrorIs(t, err, types.ErrConflict)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("expired post conflicts", func(t *testing.T) {
		f := newFixture(t)
		post := f.post(t)
		f.clock.Advance(3 * time.Hour)

		_, err := f.engine.ClaimPost(ctx, ngoA, post.ID)
		require.ErrorIs(t, err, types.ErrConflict)
		assert.EqualError(t, err, "food post has expired")
		assert.Equal(t, types.FoodPostStatusPosted, f.mustPost(t, post.ID).Status)
	})

	t.Run("claimed_at is shared by post and claim", func(t *testing.T) {
		f := newFixture(t)
		post, claim := f.claimed(t, ngoA)

		stored := f.mustPost(t, post.ID)
		require.NotNil(t, stored.ClaimedAt)
		assert.True(t, stored.ClaimedAt.Equal(claim.ClaimedAt))
		assert.Equal(t, post.ID, claim.FoodPostID)
		assert.Equal(t, ngoA.UserID, claim.NGOID)
	})

	t.Run("an active claim blocks a posted post", func(t *testing.T) {
		f := newFixture(t)
		post, first := f.claimed(t, ngoA)

		stored := f.mustPost(t, post.ID)
		stored.Status = types.FoodPostStatusPosted
		require.NoError(t, f.store.SaveFoodPost(ctx, stored))

		_, err := f.engine.ClaimPost(ctx, ngoB, post.ID)
		require.ErrorIs(t, err, types.ErrConflict)
		assert.EqualError(t, err, "post not available for claiming")

		cancelled := f.mustClaim(t, first.ID)
		cancelled.Status = types.ClaimStatusCancelled
		require.NoError(t, f.store.SaveClaim(ctx, cancelled))

		second, err := f.engine.ClaimPost(ctx, ngoB, post.ID)
		require.NoError(t, err)
		assert.Equal(t, ngoB.UserID, second.NGOID)
	})
}

func TestEngine_StartPickup(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat returns the pending code", func(t *testing.T) {
		calls := 0
		f := newFixture(t, lifecycle.WithCodeGenerator(func() (string, error) {
			calls++
			if calls == 1 {
				return "111111", nil
			}
			return "222222", nil
		}))
		_, claim := f.claimed(t, ngoA)

		first, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		second, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
		require.NoError(t, err)

		assert.Equal(t, "111111", first.Code)
		assert.Equal(t, first.Code, second.Code)
		assert.True(t, second.Reissued)
		assert.Equal(t, first.RequestedAt, second.RequestedAt)
		assert.Equal(t, 1, calls)
		assert.Equal(t, types.ClaimStatusClaimed, f.mustClaim(t, claim.ID).Status)
	})

	t.Run("claim past claimed conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.picked(t, ngoA)

		_, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
		require.ErrorIs(t, err, types.ErrConflict)
		assert.EqualError(t, err, "claim not in claimed state")
	})

	t.Run("default generator yields six digits", func(t *testing.T) {
		f := newFixture(t, lifecycle.WithCodeLength(6))
		_, claim := f.claimed(t, ngoA)

		code, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code.Code)
	})
}

func TestEngine_VerifyPickup(t *testing.T) {
	ctx := context.Background()

	t.Run("without start conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.claimed(t, ngoA)

		_, err := f.engine.VerifyPickup(ctx, ngoA, claim.ID, "482913")
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("empty code is a validation error", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.claimed(t, ngoA)

		_, err := f.engine.VerifyPickup(ctx, ngoA, claim.ID, "  ")
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("verified twice conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.picked(t, ngoA)

		_, err := f.engine.VerifyPickup(ctx, ngoA, claim.ID, "482913")
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestEngine_Distribute(t *testing.T) {
	ctx := context.Background()

	invalid := []struct {
		name string
		form types.DistributionForm
	}{
		{"missing location", types.DistributionForm{PeopleFed: 10}},
		{"blank location", types.DistributionForm{Location: "  ", PeopleFed: 10}},
		{"zero people", types.DistributionForm{Location: "Shelter A"}},
		{"negative people", types.DistributionForm{Location: "Shelter A", PeopleFed: -3}},
		{"too many people", types.DistributionForm{Location: "Shelter A", PeopleFed: 100001}},
		{"bad date", types.DistributionForm{Location: "Shelter A", PeopleFed: 5, Date: "17/10/2026"}},
		{"bad time", types.DistributionForm{Location: "Shelter A", PeopleFed: 5, Time: utils.StringPtr("noon")}},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			post, claim := f.picked(t, ngoA)

			_, err := f.engine.Distribute(ctx, ngoA, claim.ID, tt.form)
			require.ErrorIs(t, err, types.ErrValidation)

			assert.Equal(t, types.ClaimStatusPicked, f.mustClaim(t, claim.ID).Status)
			assert.Nil(t, f.mustClaim(t, claim.ID).Distribution)
			assert.Equal(t, types.FoodPostStatusPicked, f.mustPost(t, post.ID).Status)
		})
	}

	t.Run("mandatory fields message", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.picked(t, ngoA)

		_, err := f.engine.Distribute(ctx, ngoA, claim.ID, types.DistributionForm{})
		assert.EqualError(t, err, "distribution location and number of people fed are mandatory")
	})

	t.Run("not picked conflicts", func(t *testing.T) {
		f := newFixture(t)
		post, claim := f.claimed(t, ngoA)

		_, err := f.engine.Distribute(ctx, ngoA, claim.ID, types.DistributionForm{Location: "Shelter A", PeopleFed: 10})
		require.ErrorIs(t, err, types.ErrConflict)
		assert.Equal(t, types.FoodPostStatusClaimed, f.mustPost(t, post.ID).Status)
	})

	t.Run("form is stored verbatim", func(t *testing.T) {
		f := newFixture(t)
		_, claim := f.picked(t, ngoA)

		form := types.DistributionForm{
			Location:   "Community hall",
			PeopleFed:  45,
			Date:       "2026-10-16",
			Time:       utils.StringPtr("18:30"),
			Note:       utils.StringPtr("Served with dal"),
			ProofImage: utils.StringPtr("proofs/abc.jpg"),
		}
		_, err := f.engine.Distribute(ctx, ngoA, claim.ID, form)
		require.NoError(t, err)

		stored := f.mustClaim(t, claim.ID)
		require.NotNil(t, stored.Distribution)
		assert.Equal(t, form, *stored.Distribution)

		_, err = f.engine.Distribute(ctx, ngoA, claim.ID, form)
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestEngine_CancelClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("reopens the post", func(t *testing.T) {
		f := newFixture(t)
		post, claim := f.claimed(t, ngoA)
		_, err := f.engine.StartPickup(ctx, ngoA, claim.ID)
		require.NoError(t, err)

		cancelled, err := f.engine.CancelClaim(ctx, ngoA, claim.ID)
		require.NoError(t, err)
		assert.Equal(t, types.ClaimStatusCancelled, cancelled.Status)

		storedClaim := f.mustClaim(t, claim.ID)
		assert.Equal(t, types.ClaimStatusCancelled, storedClaim.Status)
		assert.Nil(t, storedClaim.PickupCode)
		assert.NotNil(t, storedClaim.CancelledAt)

		storedPost := f.mustPost(t, post.ID)
		assert.Equal(t, types.FoodPostStatusPosted, storedPost.Status)
		assert.Nil(t, storedPost.ClaimedAt)

		again, err := f.engine.ClaimPost(ctx, ngoB, post.ID)
		require.NoError(t, err)
		assert.NotEqual(t, claim.ID, again.ID)

		_, err = f.engine.StartPickup(ctx, ngoA, claim.ID)
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("after pickup conflicts", func(t *testing.T) {
		f := newFixture(t)
		post, claim := f.picked(t, ngoA)

		_, err := f.engine.CancelClaim(ctx, ngoA, claim.ID)
		require.ErrorIs(t, err, types.ErrConflict)
		assert.Equal(t, types.FoodPostStatusPicked, f.mustPost(t, post.ID).Status)
		assert.Equal(t, types.ClaimStatusPicked, f.mustClaim(t, claim.ID).Status)
	})

	t.Run("missing claim conflicts", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.CancelClaim(ctx, ngoA, "nope")
		assert.ErrorIs(t, err, types.ErrClaimNotFound)
	})
}

func TestEngine_SummarizeImpact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, distributed := f.picked(t, ngoA)
	_, err := f.engine.Distribute(ctx, ngoA, distributed.ID, types.DistributionForm{Location: "Shelter A", PeopleFed: 45})
	require.NoError(t, err)

	f.claimed(t, ngoB)

	summary, err := f.engine.SummarizeImpact(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ImpactSummary{MealsServed: 45, ActiveNGOs: 2, SuccessfulDistributions: 1}, *summary)

	// Recomputed on read.
	_, second := f.picked(t, ngoB)
	_, err = f.engine.Distribute(ctx, ngoB, second.ID, types.DistributionForm{Location: "School", PeopleFed: 5})
	require.NoError(t, err)

	summary, err = f.engine.SummarizeImpact(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ImpactSummary{MealsServed: 50, ActiveNGOs: 2, SuccessfulDistributions: 2}, *summary)
}

func TestEngine_LogsTransitions(t *testing.T) {
	f := newFixture(t)
	f.claimed(t, ngoA)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "food post claimed", entry.Message)
	assert.Equal(t, ngoA.UserID, entry.Data["ngo_id"])
}

func TestEngine_RejectionMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.engine.ClaimPost(ctx, ngoA, "missing")
	_, _ = f.engine.ClaimPost(ctx, ngoA, "missing")

	assert.Equal(t, 2.0, f.counter(t, "feedchain_lifecycle_rejections_total", map[string]string{"operation": "claim_post", "kind": "not_found"}))
	assert.Zero(t, f.counter(t, "feedchain_lifecycle_transitions_total", map[string]string{"from": "posted", "to": "claimed"}))
}
