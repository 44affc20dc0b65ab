package store

import (
	"context"
	"fmt"

	"feedchain/internal/utils"
	"feedchain/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

const lifecycleEventsTableName = "feedchain.lifecycle_events"

var lifecycleEventsColumns = utils.StructTagValues(types.LifecycleEvent{})

type LifecycleEventRepository struct {
	db querier
}

// RecordEvent appends to the audit trail. Events are never updated.
func (r *LifecycleEventRepository) RecordEvent(ctx context.Context, event *types.LifecycleEvent) error {

	query, args, err := psql().
		Insert(lifecycleEventsTableName).
		SetMap(utils.StructToMap(event)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert lifecycle event query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to record lifecycle event")
}

// EventsByFoodPost returns all events for a post in the order they were
// recorded.
func (r *LifecycleEventRepository) EventsByFoodPost(ctx context.Context, postID string) ([]*types.LifecycleEvent, error) {
	query, args, err := psql().
		Select(lifecycleEventsColumns...).
		From(lifecycleEventsTableName).
		Where(sq.Eq{"food_post_id": postID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate get events query: %w", err)
	}

	var events = make([]*types.LifecycleEvent, 0)
	err = pgxscan.Select(ctx, r.db, &events, query, args...)
	if err != nil {
		return nil, utils.ErrorWrapOrNil(err, "failed to get lifecycle events")
	}

	return events, nil
}
