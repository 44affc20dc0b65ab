package lifecycle

import (
	"context"
	"strings"
	"time"

	"feedchain/internal/utils"
	"feedchain/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	maxFoodTypeLen = 200
	maxQuantityLen = 100
	maxLocationLen = 500
	maxPeopleFed   = 100000

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Engine drives FoodPost/Claim pairs through
// posted -> claimed -> picked -> distributed, with claimed -> posted on
// cancellation. A post and its claim always change status together inside
// one Store.Atomic unit.
type Engine struct {
	store   Store
	logger  logrus.FieldLogger
	metrics *metrics

	now     func() time.Time
	newCode func() (string, error)

	minExpiryLead  time.Duration
	nearbyRadiusKM float64
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCodeGenerator replaces the pickup code generator.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newCode = gen }
}

func WithCodeLength(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.newCode = func() (string, error) { return utils.NumericCode(size) }
		}
	}
}

func WithMinExpiryLead(d time.Duration) Option {
	return func(e *Engine) { e.minExpiryLead = d }
}

// WithNearbyRadius limits AvailablePosts to posts within km of the query
// point. Zero means no limit.
func WithNearbyRadius(km float64) Option {
	return func(e *Engine) { e.nearbyRadiusKM = km }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = newMetrics(reg) }
}

func New(store Store, logger logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		logger:        logger,
		now:           time.Now,
		newCode:       func() (string, error) { return utils.NumericCode(6) },
		minExpiryLead: 30 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = newMetrics(nil)
	}

	return e
}

// Timestamps are kept at microsecond precision so they survive a round trip
// through Postgres unchanged.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) CreatePost(ctx context.Context, actor types.Actor, in types.NewFoodPost) (*types.FoodPost, error) {
	post, err := e.createPost(ctx, actor, in)
	if err != nil {
		e.metrics.rejected("create_post", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"food_post_id": post.ID,
		"donor_id":     post.DonorID,
	}).Info("food post created")

	e.metrics.transition("none", string(types.FoodPostStatusPosted))

	return post, nil
}

func (e *Engine) createPost(ctx context.Context, actor types.Actor, in types.NewFoodPost) (*types.FoodPost, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := e.timestamp()

	foodType := strings.TrimSpace(in.FoodType)
	quantity := strings.TrimSpace(in.Quantity)

	switch {
	case foodType == "" || quantity == "":
		return nil, types.Validationf("food type and quantity are required")
	case len(foodType) > maxFoodTypeLen:
		return nil, types.Validationf("food type must be at most %d characters", maxFoodTypeLen)
	case len(quantity) > maxQuantityLen:
		return nil, types.Validationf("quantity must be at most %d characters", maxQuantityLen)
	case in.ExpiryTime.IsZero():
		return nil, types.Validationf("expiry time is required")
	case in.ExpiryTime.Before(now.Add(e.minExpiryLead)):
		return nil, types.Validationf("expiry time must be at least %s in the future", e.minExpiryLead)
	case (in.PickupLat == nil) != (in.PickupLng == nil):
		return nil, types.Validationf("pickup latitude and longitude must be given together")
	case in.PickupLat != nil && !validCoordinates(*in.PickupLat, *in.PickupLng):
		return nil, types.Validationf("pickup coordinates are out of range")
	}

	post := &types.FoodPost{
		ID:         utils.NanoID(),
		DonorID:    actor.UserID,
		FoodType:   foodType,
		Quantity:   quantity,
		ExpiryTime: in.ExpiryTime.UTC().Truncate(time.Microsecond),
		PickupLat:  in.PickupLat,
		PickupLng:  in.PickupLng,
		Status:     types.FoodPostStatusPosted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := e.store.Atomic(ctx, func(tx Collections) error {
		if err := tx.SaveFoodPost(ctx, post); err != nil {
			return err
		}
		return e.recordTransition(ctx, tx, actor, post, nil, "")
	})
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (e *Engine) ClaimPost(ctx context.Context, actor types.Actor, postID string) (*types.Claim, error) {
	claim, err := e.claimPost(ctx, actor, postID)
	if err != nil {
		e.metrics.rejected("claim_post", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"food_post_id": postID,
		"claim_id":     claim.ID,
		"ngo_id":       claim.NGOID,
	}).Info("food post claimed")

	e.metrics.transition(string(types.FoodPostStatusPosted), string(types.FoodPostStatusClaimed))

	return claim, nil
}

func (e *Engine) claimPost(ctx context.Context, actor types.Actor, postID string) (*types.Claim, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := e.timestamp()

	var claim *types.Claim
	err := e.store.Atomic(ctx, func(tx Collections) error {
		post, err := tx.FoodPost(ctx, postID)
		if err != nil {
			return err
		}

		if post.Status != types.FoodPostStatusPosted {
			return types.Conflictf("post not available for claiming")
		}

		if post.Expired(now) {
			return types.Conflictf("food post has expired")
		}

		existing, err := tx.ClaimsByFoodPost(ctx, post.ID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.Status.Active() {
				return types.Conflictf("post not available for claiming")
			}
		}

		claim = &types.Claim{
			ID:         utils.NanoID(),
			FoodPostID: post.ID,
			NGOID:      actor.UserID,
			Status:     types.ClaimStatusClaimed,
			ClaimedAt:  now,
			UpdatedAt:  now,
		}

		from := post.Status
		post.Status = types.FoodPostStatusClaimed
		post.ClaimedAt = &now
		post.UpdatedAt = now

		if err := tx.SaveClaim(ctx, claim); err != nil {
			return err
		}
		if err := tx.SaveFoodPost(ctx, post); err != nil {
			return err
		}

		return e.recordTransition(ctx, tx, actor, post, claim, from)
	})
	if err != nil {
		return nil, err
	}

	return claim, nil
}

// StartPickup issues the code that VerifyPickup expects. While a code is
// pending, calling it again returns the same code.
func (e *Engine) StartPickup(ctx context.Context, actor types.Actor, claimID string) (*types.PickupCode, error) {
	code, err := e.startPickup(ctx, actor, claimID)
	if err != nil {
		e.metrics.rejected("start_pickup", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"claim_id": claimID,
		"reissued": code.Reissued,
	}).Info("pickup started")

	return code, nil
}

func (e *Engine) startPickup(ctx context.Context, actor types.Actor, claimID string) (*types.PickupCode, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := e.timestamp()

	var out *types.PickupCode
	err := e.store.Atomic(ctx, func(tx Collections) error {
		claim, err := tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}

		if claim.Status != types.ClaimStatusClaimed {
			return types.Conflictf("claim not in claimed state")
		}

		if claim.PickupCode != nil && claim.PickupRequestedAt != nil {
			out = &types.PickupCode{
				ClaimID:     claim.ID,
				Code:        *claim.PickupCode,
				RequestedAt: *claim.PickupRequestedAt,
				Reissued:    true,
			}
			return nil
		}

		code, err := e.newCode()
		if err != nil {
			return utils.ErrorWrapOrNil(err, "failed to generate pickup code")
		}

		claim.PickupCode = &code
		claim.PickupRequestedAt = &now
		claim.UpdatedAt = now

		if err := tx.SaveClaim(ctx, claim); err != nil {
			return err
		}

		out = &types.PickupCode{ClaimID: claim.ID, Code: code, RequestedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (e *Engine) VerifyPickup(ctx context.Context, actor types.Actor, claimID, otp string) (*types.Claim, error) {
	claim, err := e.verifyPickup(ctx, actor, claimID, otp)
	if err != nil {
		e.metrics.rejected("verify_pickup", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"claim_id":     claim.ID,
		"food_post_id": claim.FoodPostID,
	}).Info("pickup verified")

	e.metrics.transition(string(types.FoodPostStatusClaimed), string(types.FoodPostStatusPicked))

	return claim, nil
}

func (e *Engine) verifyPickup(ctx context.Context, actor types.Actor, claimID, otp string) (*types.Claim, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, types.Validationf("pickup code is required")
	}

	now := e.timestamp()

	var claim *types.Claim
	err := e.store.Atomic(ctx, func(tx Collections) error {
		var err error
		claim, err = tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}

		if claim.Status != types.ClaimStatusClaimed {
			return types.Conflictf("claim not in claimed state")
		}

		if claim.PickupCode == nil {
			return types.Conflictf("pickup has not been started for this claim")
		}

		if *claim.PickupCode != otp {
			return types.Unauthorizedf("pickup code does not match")
		}

		claim.Status = types.ClaimStatusPicked
		claim.PickedAt = &now
		claim.PickupCode = nil

		return e.advance(ctx, tx, actor, claim, now, func(post *types.FoodPost) {
			post.PickedAt = &now
		})
	})
	if err != nil {
		return nil, err
	}

	return claim, nil
}

func (e *Engine) Distribute(ctx context.Context, actor types.Actor, claimID string, form types.DistributionForm) (*types.Claim, error) {
	claim, err := e.distribute(ctx, actor, claimID, form)
	if err != nil {
		e.metrics.rejected("distribute", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"claim_id":     claim.ID,
		"food_post_id": claim.FoodPostID,
		"people_fed":   claim.Distribution.PeopleFed,
	}).Info("food distributed")

	e.metrics.transition(string(types.FoodPostStatusPicked), string(types.FoodPostStatusDistributed))

	return claim, nil
}

func (e *Engine) distribute(ctx context.Context, actor types.Actor, claimID string, form types.DistributionForm) (*types.Claim, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := e.timestamp()

	record, err := normalizeForm(form, now)
	if err != nil {
		return nil, err
	}

	var claim *types.Claim
	err = e.store.Atomic(ctx, func(tx Collections) error {
		var err error
		claim, err = tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}

		if claim.Status != types.ClaimStatusPicked {
			return types.Conflictf("claim not in picked state")
		}

		claim.Status = types.ClaimStatusDistributed
		claim.DistributedAt = &now
		claim.Distribution = record

		return e.advance(ctx, tx, actor, claim, now, func(post *types.FoodPost) {
			post.DistributedAt = &now
		})
	})
	if err != nil {
		return nil, err
	}

	return claim, nil
}

func normalizeForm(form types.DistributionForm, now time.Time) (*types.DistributionForm, error) {
	location := strings.TrimSpace(form.Location)
	if location == "" || form.PeopleFed < 1 {
		return nil, types.Validationf("distribution location and number of people fed are mandatory")
	}

	if len(location) > maxLocationLen {
		return nil, types.Validationf("distribution location must be at most %d characters", maxLocationLen)
	}

	if form.PeopleFed > maxPeopleFed {
		return nil, types.Validationf("number of people fed must be at most %d", maxPeopleFed)
	}

	record := form
	record.Location = location

	if strings.TrimSpace(record.Date) == "" {
		record.Date = now.Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, record.Date); err != nil {
		return nil, types.Validationf("distribution date must be formatted as YYYY-MM-DD")
	}

	if record.Time != nil && *record.Time != "" {
		if _, err := time.Parse(timeLayout, *record.Time); err != nil {
			return nil, types.Validationf("distribution time must be formatted as HH:MM")
		}
	}

	return &record, nil
}

// CancelClaim releases a claim that has not been picked up yet. The claim is
// kept with status cancelled and the post is open for claiming again.
func (e *Engine) CancelClaim(ctx context.Context, actor types.Actor, claimID string) (*types.Claim, error) {
	claim, err := e.cancelClaim(ctx, actor, claimID)
	if err != nil {
		e.metrics.rejected("cancel_claim", err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"claim_id":     claim.ID,
		"food_post_id": claim.FoodPostID,
	}).Info("claim cancelled")

	e.metrics.transition(string(types.FoodPostStatusClaimed), string(types.FoodPostStatusPosted))

	return claim, nil
}

func (e *Engine) cancelClaim(ctx context.Context, actor types.Actor, claimID string) (*types.Claim, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := e.timestamp()

	var claim *types.Claim
	err := e.store.Atomic(ctx, func(tx Collections) error {
		var err error
		claim, err = tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}

		if claim.Status != types.ClaimStatusClaimed {
			return types.Conflictf("claim can only be cancelled before pickup")
		}

		claim.Status = types.ClaimStatusCancelled
		claim.CancelledAt = &now
		claim.PickupCode = nil
		claim.PickupRequestedAt = nil

		return e.advance(ctx, tx, actor, claim, now, func(post *types.FoodPost) {
			post.ClaimedAt = nil
		})
	})
	if err != nil {
		return nil, err
	}

	return claim, nil
}

// advance writes claim and moves its post to the matching status. The post
// must currently mirror the claim's previous status.
func (e *Engine) advance(ctx context.Context, tx Collections, actor types.Actor, claim *types.Claim, now time.Time, stamp func(*types.FoodPost)) error {
	post, err := tx.FoodPost(ctx, claim.FoodPostID)
	if err != nil {
		return err
	}

	want := previousPostStatus(claim.Status)
	if post.Status != want {
		return types.Conflictf("food post is %s, expected %s", post.Status, want)
	}

	from := post.Status
	post.Status = claim.Status.PostStatus()
	post.UpdatedAt = now
	stamp(post)

	claim.UpdatedAt = now

	if err := tx.SaveClaim(ctx, claim); err != nil {
		return err
	}
	if err := tx.SaveFoodPost(ctx, post); err != nil {
		return err
	}

	return e.recordTransition(ctx, tx, actor, post, claim, from)
}

func previousPostStatus(next types.ClaimStatus) types.FoodPostStatus {
	switch next {
	case types.ClaimStatusPicked:
		return types.FoodPostStatusClaimed
	case types.ClaimStatusDistributed:
		return types.FoodPostStatusPicked
	case types.ClaimStatusCancelled:
		return types.FoodPostStatusClaimed
	}
	return types.FoodPostStatusPosted
}

func (e *Engine) recordTransition(ctx context.Context, tx Collections, actor types.Actor, post *types.FoodPost, claim *types.Claim, from types.FoodPostStatus) error {
	event := &types.LifecycleEvent{
		ID:         utils.NanoID(),
		FoodPostID: post.ID,
		ActorID:    actor.UserID,
		FromStatus: from,
		ToStatus:   post.Status,
		CreatedAt:  post.UpdatedAt,
	}
	if claim != nil {
		event.ClaimID = utils.StringPtr(claim.ID)
	}

	if err := tx.RecordEvent(ctx, event); err != nil {
		return utils.ErrorWrapOrNil(err, "failed to record lifecycle event")
	}

	return nil
}

func requireActor(actor types.Actor) error {
	if strings.TrimSpace(actor.UserID) == "" || !actor.Role.Valid() {
		return types.Unauthorizedf("missing or invalid identity")
	}
	return nil
}
