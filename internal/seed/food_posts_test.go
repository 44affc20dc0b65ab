package seed

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"feedchain/internal/lifecycle"
	"feedchain/internal/memstore"
	"feedchain/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFoodPosts(t *testing.T) {
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memstore.New()
	engine := lifecycle.New(store, logger)

	result, err := SeedFoodPosts(ctx, engine, 40, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	total := 0
	for _, n := range result {
		total += n
	}
	assert.Equal(t, 40, total)

	posts, err := store.FoodPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 40)

	byStatus := map[types.FoodPostStatus]int{}
	for _, p := range posts {
		byStatus[p.Status]++
	}
	assert.Equal(t, map[types.FoodPostStatus]int(result), byStatus)

	claims, err := store.Claims(ctx)
	require.NoError(t, err)
	assert.Len(t, claims, 40-result[types.FoodPostStatusPosted])

	summary, err := engine.SummarizeImpact(ctx)
	require.NoError(t, err)
	assert.Equal(t, result[types.FoodPostStatusDistributed], summary.SuccessfulDistributions)
	assert.GreaterOrEqual(t, summary.MealsServed, 5*summary.SuccessfulDistributions)
}

func TestSeedFoodPostsNothingToDo(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	result, err := SeedFoodPosts(context.Background(), lifecycle.New(memstore.New(), logger), 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestActors(t *testing.T) {
	for _, a := range Actors() {
		assert.True(t, a.Role.Valid())
		assert.NotEmpty(t, a.UserID)
	}
	assert.NotEmpty(t, actorsWithRole(types.RoleDonor))
	assert.NotEmpty(t, actorsWithRole(types.RoleNGO))
}
