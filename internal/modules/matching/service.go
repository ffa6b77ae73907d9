// README: Matching engine: estimate the route, then pair the request with a pending ride under a per-key lock.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/events"
	"carpool/internal/modules/pricing"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
	"carpool/internal/observability"
	"carpool/internal/types"
)

// errCandidateTaken means another request claimed the candidate between search and claim.
var errCandidateTaken = errors.New("candidate already matched")

type Engine struct {
	store     ride.Store
	estimator *route.Estimator
	fares     *pricing.Calculator
	matcher   Matcher
	locker    Locker
	events    events.Publisher
	log       logrus.FieldLogger
	opts      Options
	now       func() time.Time
}

func NewEngine(store ride.Store, estimator *route.Estimator, fares *pricing.Calculator, matcher Matcher,
	locker Locker, publisher events.Publisher, log logrus.FieldLogger, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		store:     store,
		estimator: estimator,
		fares:     fares,
		matcher:   matcher,
		locker:    locker,
		events:    publisher,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// RequestRide records the request and pairs it with a compatible pending ride when one exists.
func (e *Engine) RequestRide(ctx context.Context, cmd RequestCommand) (*RequestResult, error) {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	if err := cmd.caller().RequireRider(); err != nil {
		observability.RideRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		observability.RideRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	est, err := e.estimator.Estimate(ctx, cmd.Pickup.Point(), cmd.Drop.Point())
	if err != nil {
		observability.RideRequestsTotal.WithLabelValues("rejected").Inc()
		if errors.Is(err, route.ErrInvalidCoordinate) {
			return nil, fmt.Errorf("%w: %v", ride.ErrBadRequest, err)
		}
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, e.matcher.Key(cmd))
	if err != nil {
		observability.RideRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("acquire match lock: %w", err)
	}
	res, err := e.pair(ctx, cmd, est)
	unlock()
	if err != nil {
		observability.RideRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	res.Route = est

	if res.Matched {
		observability.RideRequestsTotal.WithLabelValues("matched").Inc()
		e.log.WithFields(logrus.Fields{
			"group_id": res.Group.ID,
			"ride_id":  res.Ride.ID,
			"rider_id": cmd.RiderID,
		}).Info("ride matched")
		e.publish(ctx, events.Event{
			Type:      events.GroupMatched,
			RideID:    res.Ride.ID,
			GroupID:   res.Group.ID,
			RiderIDs:  res.Group.RiderIDs,
			TotalFare: res.Group.TotalFare,
			At:        res.Group.CreatedAt,
		})
	} else {
		observability.RideRequestsTotal.WithLabelValues("waiting").Inc()
		e.log.WithFields(logrus.Fields{"ride_id": res.Ride.ID, "rider_id": cmd.RiderID}).Info("ride waiting for match")
		e.publish(ctx, events.Event{
			Type:      events.RideRequested,
			RideID:    res.Ride.ID,
			RiderIDs:  []types.ID{cmd.RiderID},
			TotalFare: res.Ride.Fare,
			At:        res.Ride.CreatedAt,
		})
	}
	return res, nil
}

// pair runs with the matcher key held. Each attempt is one transaction; a lost
// claim rolls it back and searches again.
func (e *Engine) pair(ctx context.Context, cmd RequestCommand, est route.Estimate) (*RequestResult, error) {
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		var res *RequestResult
		err := e.store.WithTx(ctx, func(tx ride.Store) error {
			cand, err := e.matcher.FindCandidate(ctx, tx, cmd)
			if errors.Is(err, ride.ErrNotFound) {
				res, err = e.createPending(ctx, tx, cmd, est)
				return err
			}
			if err != nil {
				return fmt.Errorf("find candidate: %w", err)
			}
			res, err = e.createGroup(ctx, tx, cmd, est, cand)
			return err
		})
		if errors.Is(err, errCandidateTaken) {
			observability.MatchClaimConflicts.Inc()
			e.log.WithFields(logrus.Fields{"rider_id": cmd.RiderID, "attempt": attempt}).Debug("candidate claimed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	// Every candidate we saw was taken; park the request rather than fail it.
	var res *RequestResult
	err := e.store.WithTx(ctx, func(tx ride.Store) error {
		var err error
		res, err = e.createPending(ctx, tx, cmd, est)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) newRide(cmd RequestCommand, est route.Estimate) *ride.Ride {
	dist := est.DistanceMeters
	dur := est.DurationLabel
	return &ride.Ride{
		ID:        types.NewID(),
		RiderID:   cmd.RiderID,
		Pickup:    cmd.Pickup.Location(),
		Drop:      cmd.Drop.Location(),
		Distance:  &dist,
		Duration:  &dur,
		Fare:      e.fares.TotalFare(est.DistanceMeters),
		CreatedAt: e.now().UTC(),
	}
}

func (e *Engine) createPending(ctx context.Context, tx ride.Store, cmd RequestCommand, est route.Estimate) (*RequestResult, error) {
	r := e.newRide(cmd, est)
	r.Status = ride.StatusRequested
	if err := tx.CreateRide(ctx, r); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	return &RequestResult{Ride: r, Message: MessageWaiting}, nil
}

func (e *Engine) createGroup(ctx context.Context, tx ride.Store, cmd RequestCommand, est route.Estimate, cand *ride.Ride) (*RequestResult, error) {
	now := e.now().UTC()
	riders := []types.ID{cmd.RiderID, cand.RiderID}
	total := e.fares.TotalFare(est.DistanceMeters)
	g := &ride.Group{
		ID:            types.NewID(),
		RiderIDs:      riders,
		Pickup:        cmd.Pickup.Location(),
		Drop:          cmd.Drop.Location(),
		Status:        ride.StatusMatched,
		Distance:      est.DistanceMeters,
		DistanceLabel: est.DistanceLabel,
		Duration:      est.DurationLabel,
		TotalFare:     total,
		PerPersonFare: e.fares.PerPersonFare(total, len(riders)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	ok, err := tx.TransitionRide(ctx, cand.ID, ride.StatusRequested, ride.StatusMatched, &g.ID)
	if err != nil {
		return nil, fmt.Errorf("claim ride %s: %w", cand.ID, err)
	}
	if !ok {
		return nil, errCandidateTaken
	}

	r := e.newRide(cmd, est)
	r.Status = ride.StatusMatched
	r.GroupID = &g.ID
	if err := tx.CreateRide(ctx, r); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	return &RequestResult{Ride: r, Group: g, Matched: true, Message: MessageMatched}, nil
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish event")
	}
}
