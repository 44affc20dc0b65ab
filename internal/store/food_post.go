package store

import (
	"context"
	"fmt"

	"feedchain/internal/utils"
	"feedchain/pkg/types"

	"github.com/georgysavva/scany/v2/pgxscan"
)

const foodPostTableName = "feedchain.food_posts"

var foodPostColumns = utils.StructTagValues(types.FoodPost{})

type FoodPostRepository struct {
	db   querier
	lock bool
}

func (r *FoodPostRepository) FoodPost(ctx context.Context, postID string) (*types.FoodPost, error) {

	query, args, err := selectByID(foodPostTableName, foodPostColumns, postID, r.lock)
	if err != nil {
		return nil, fmt.Errorf("failed to generate food post query: %w", err)
	}

	var post = new(types.FoodPost)
	err = pgxscan.Get(ctx, r.db, post, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("failed to fetch food post %s: %w", postID, err)
	}

	if err != nil {
		return nil, types.ErrFoodPostNotFound
	}

	return post, nil
}

func (r *FoodPostRepository) FoodPosts(ctx context.Context) ([]*types.FoodPost, error) {

	query, args, err := psql().Select(foodPostColumns...).From(foodPostTableName).
		OrderBy("created_at desc", "id asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate food posts query: %w", err)
	}

	var posts = make([]*types.FoodPost, 0)
	err = pgxscan.Select(ctx, r.db, &posts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch food posts: %w", err)
	}

	return posts, nil
}

func (r *FoodPostRepository) SaveFoodPost(ctx context.Context, post *types.FoodPost) error {

	query, args, err := upsert(foodPostTableName, post)
	if err != nil {
		return fmt.Errorf("failed to generate upsert food post query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to save food post")
}
