// README: Group lifecycle: driver accept and complete transitions plus group queries.
package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/events"
	"carpool/internal/modules/pricing"
	"carpool/internal/modules/ride"
	"carpool/internal/observability"
	"carpool/internal/types"
)

type AcceptCommand struct {
	GroupID types.ID
	Caller  ride.Caller
}

type CompleteCommand struct {
	GroupID types.ID
	Caller  ride.Caller
}

type Service struct {
	store  ride.Store
	fares  *pricing.Calculator
	events events.Publisher
	log    logrus.FieldLogger
}

func NewService(store ride.Store, fares *pricing.Calculator, publisher events.Publisher, log logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, fares: fares, events: publisher, log: log}
}

// Accept assigns the caller as the group's driver and moves the group and its
// matched rides to in_progress.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*ride.Group, error) {
	if err := cmd.Caller.RequireDriver(); err != nil {
		return nil, err
	}
	if cmd.GroupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ride.ErrBadRequest)
	}

	var accepted *ride.Group
	err := s.store.WithTx(ctx, func(tx ride.Store) error {
		g, err := tx.GetGroup(ctx, cmd.GroupID)
		if errors.Is(err, ride.ErrNotFound) {
			return fmt.Errorf("%w: group %s is not available", ride.ErrConflict, cmd.GroupID)
		}
		if err != nil {
			return err
		}
		if g.DriverID != nil || g.Status != ride.StatusMatched {
			return fmt.Errorf("%w: group %s already assigned", ride.ErrConflict, g.ID)
		}

		total, perPerson := s.fares.AcceptFare(g.TotalFare, len(g.RiderIDs))
		ok, err := tx.AssignDriver(ctx, g.ID, cmd.Caller.ID, total, perPerson)
		if err != nil {
			return fmt.Errorf("assign driver: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: group %s already assigned", ride.ErrConflict, g.ID)
		}

		driver := cmd.Caller.ID
		if _, err := tx.UpdateRides(ctx, ride.RideFilter{
			GroupID:  g.ID,
			RiderIDs: g.RiderIDs,
			Statuses: []ride.Status{ride.StatusMatched},
		}, ride.RidePatch{Status: ride.StatusInProgress, DriverID: &driver}); err != nil {
			return fmt.Errorf("start rides: %w", err)
		}

		accepted, err = tx.GetGroup(ctx, g.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GroupTransitionsTotal.WithLabelValues(string(ride.StatusInProgress)).Inc()
	s.log.WithFields(logrus.Fields{"group_id": accepted.ID, "driver_id": cmd.Caller.ID}).Info("group accepted")
	s.publish(ctx, events.Event{
		Type:      events.GroupAccepted,
		GroupID:   accepted.ID,
		RiderIDs:  accepted.RiderIDs,
		DriverID:  cmd.Caller.ID,
		TotalFare: accepted.TotalFare,
		At:        time.Now().UTC(),
	})
	return accepted, nil
}

// Complete finishes a trip; only the assigned driver may do so, and only once.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*ride.Group, error) {
	if err := cmd.Caller.RequireDriver(); err != nil {
		return nil, err
	}

	var completed *ride.Group
	err := s.store.WithTx(ctx, func(tx ride.Store) error {
		g, err := tx.GetGroup(ctx, cmd.GroupID)
		if err != nil {
			return err
		}
		if g.DriverID == nil || *g.DriverID != cmd.Caller.ID {
			return fmt.Errorf("%w: group %s is not assigned to this driver", ride.ErrForbidden, g.ID)
		}
		if g.Status != ride.StatusInProgress {
			return fmt.Errorf("%w: group %s is %s", ride.ErrConflict, g.ID, g.Status)
		}

		ok, err := tx.TransitionGroup(ctx, g.ID, ride.StatusInProgress, ride.StatusCompleted)
		if err != nil {
			return fmt.Errorf("complete group: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: group %s changed concurrently", ride.ErrConflict, g.ID)
		}

		if _, err := tx.UpdateRides(ctx, ride.RideFilter{
			GroupID:  g.ID,
			RiderIDs: g.RiderIDs,
			Statuses: []ride.Status{ride.StatusInProgress},
		}, ride.RidePatch{Status: ride.StatusCompleted}); err != nil {
			return fmt.Errorf("complete rides: %w", err)
		}

		completed, err = tx.GetGroup(ctx, g.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.GroupTransitionsTotal.WithLabelValues(string(ride.StatusCompleted)).Inc()
	s.log.WithFields(logrus.Fields{"group_id": completed.ID, "driver_id": cmd.Caller.ID}).Info("group completed")
	s.publish(ctx, events.Event{
		Type:      events.GroupCompleted,
		GroupID:   completed.ID,
		RiderIDs:  completed.RiderIDs,
		DriverID:  cmd.Caller.ID,
		TotalFare: completed.TotalFare,
		At:        time.Now().UTC(),
	})
	return completed, nil
}

// ListUnassigned returns matched groups still waiting for a driver.
func (s *Service) ListUnassigned(ctx context.Context) ([]*ride.Group, error) {
	return s.store.FindGroups(ctx, ride.GroupFilter{Statuses: []ride.Status{ride.StatusMatched}, Unassigned: true})
}

func (s *Service) ListActive(ctx context.Context) ([]*ride.Group, error) {
	return s.store.FindGroups(ctx, ride.GroupFilter{Statuses: []ride.Status{ride.StatusMatched, ride.StatusInProgress}})
}

func (s *Service) DriverHistory(ctx context.Context, caller ride.Caller) ([]*ride.Group, error) {
	if err := caller.RequireDriver(); err != nil {
		return nil, err
	}
	return s.store.FindGroups(ctx, ride.GroupFilter{Statuses: []ride.Status{ride.StatusCompleted}, DriverID: caller.ID})
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish event")
	}
}
