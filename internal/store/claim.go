package store

import (
	"context"
	"fmt"

	"feedchain/internal/utils"
	"feedchain/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

const claimTableName = "feedchain.claims"

var claimColumns = utils.StructTagValues(types.Claim{})

type ClaimRepository struct {
	db   querier
	lock bool
}

func (r *ClaimRepository) Claim(ctx context.Context, claimID string) (*types.Claim, error) {

	query, args, err := selectByID(claimTableName, claimColumns, claimID, r.lock)
	if err != nil {
		return nil, fmt.Errorf("failed to generate claim query: %w", err)
	}

	var claim = new(types.Claim)
	err = pgxscan.Get(ctx, r.db, claim, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("failed to fetch claim %s: %w", claimID, err)
	}

	if err != nil {
		return nil, types.ErrClaimNotFound
	}

	return claim, nil
}

func (r *ClaimRepository) Claims(ctx context.Context) ([]*types.Claim, error) {

	query, args, err := psql().Select(claimColumns...).From(claimTableName).
		OrderBy("claimed_at desc", "id asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claims query: %w", err)
	}

	var claims = make([]*types.Claim, 0)
	err = pgxscan.Select(ctx, r.db, &claims, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims: %w", err)
	}

	return claims, nil
}

// ClaimsByFoodPost lists every claim ever made on the post, cancelled ones
// included. Inside a transaction the rows are locked.
func (r *ClaimRepository) ClaimsByFoodPost(ctx context.Context, postID string) ([]*types.Claim, error) {

	builder := psql().Select(claimColumns...).From(claimTableName).
		Where(sq.Eq{"food_post_id": postID}).
		OrderBy("claimed_at desc", "id asc")
	if r.lock {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claims by food post query: %w", err)
	}

	var claims = make([]*types.Claim, 0)
	err = pgxscan.Select(ctx, r.db, &claims, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims for food post %s: %w", postID, err)
	}

	return claims, nil
}

// SaveClaim writes the full claim. The distribution form is stored as jsonb.
func (r *ClaimRepository) SaveClaim(ctx context.Context, claim *types.Claim) error {

	query, args, err := upsert(claimTableName, claim)
	if err != nil {
		return fmt.Errorf("failed to generate upsert claim query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to save claim")
}
