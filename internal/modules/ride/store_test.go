package ride

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"carpool/internal/types"
)

var rideCols = []string{
	"id", "rider_id", "pickup_address", "pickup_lat", "pickup_lng",
	"drop_address", "drop_lat", "drop_lng", "status", "driver_id",
	"distance", "duration", "fare", "group_id", "created_at",
}

var groupCols = []string{
	"id", "rider_ids", "driver_id", "pickup_address", "pickup_lat", "pickup_lng",
	"drop_address", "drop_lat", "drop_lng", "status", "distance", "distance_label", "duration",
	"total_fare", "per_person_fare", "created_at", "updated_at",
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PGStore) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPGStore(mock)
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestPGStoreCreateRide(t *testing.T) {
	mock, store := newMock(t)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	r := &Ride{
		ID:        "r1",
		RiderID:   "u1",
		Pickup:    Location{Address: "Main St", Lat: 12.97, Lng: 77.59},
		Drop:      Location{Address: "Park Ave", Lat: 12.93, Lng: 77.62},
		Status:    StatusRequested,
		Distance:  floatPtr(5120),
		Duration:  strPtr("11 min"),
		Fare:      52,
		CreatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO rides`).
		WithArgs("r1", "u1", "Main St", 12.97, 77.59, "Park Ave", 12.93, 77.62, "requested",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 52.0, pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.CreateRide(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreFindRideBuildsCandidateQuery(t *testing.T) {
	mock, store := newMock(t)
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(rideCols).AddRow(
		"r9", "u2", "12 Main St", 12.97, 77.59, "Park Ave Gate 2", 12.93, 77.62, "requested", (*string)(nil),
		floatPtr(5120), strPtr("11 min"), 52.0, (*string)(nil), created,
	)
	mock.ExpectQuery(`FROM rides WHERE status = ANY\(\$1\) AND rider_id <> \$2 AND pickup_address ILIKE \$3 ESCAPE '\\' AND drop_address ILIKE \$4 ESCAPE '\\' ORDER BY created_at DESC LIMIT \$5`).
		WithArgs([]string{"requested"}, "u1", `%main st%`, `%100\% park%`, 1).
		WillReturnRows(rows)

	r, err := store.FindRide(context.Background(), RideFilter{
		Statuses:       []Status{StatusRequested},
		ExcludeRiderID: "u1",
		PickupContains: "main st",
		DropContains:   "100% park",
	})
	if err != nil {
		t.Fatalf("find ride: %v", err)
	}
	if r.ID != "r9" || r.RiderID != "u2" || r.Status != StatusRequested {
		t.Fatalf("unexpected ride %+v", r)
	}
	if r.DriverID != nil || r.GroupID != nil {
		t.Fatalf("expected null driver/group, got %v %v", r.DriverID, r.GroupID)
	}
	if r.Distance == nil || *r.Distance != 5120 {
		t.Fatalf("unexpected distance %v", r.Distance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreFindRideNotFound(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(`FROM rides WHERE rider_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("u1", 1).
		WillReturnRows(pgxmock.NewRows(rideCols))

	if _, err := store.FindRide(context.Background(), RideFilter{RiderID: "u1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreGetGroupNotFound(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(`FROM ride_groups WHERE id = \$1`).
		WithArgs("g404").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetGroup(context.Background(), "g404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreFindGroups(t *testing.T) {
	mock, store := newMock(t)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(groupCols).AddRow(
		"g1", []string{"u1", "u2"}, strPtr("d1"), "Main St", 12.97, 77.59,
		"Park Ave", 12.93, 77.62, "completed", 5120.0, "5.1km", "11 min",
		52.0, 26.0, now, now,
	)
	mock.ExpectQuery(`FROM ride_groups WHERE status = ANY\(\$1\) AND driver_id = \$2 ORDER BY created_at DESC`).
		WithArgs([]string{"completed"}, "d1").
		WillReturnRows(rows)

	groups, err := store.FindGroups(context.Background(), GroupFilter{Statuses: []Status{StatusCompleted}, DriverID: "d1"})
	if err != nil {
		t.Fatalf("find groups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.RiderIDs) != 2 || g.RiderIDs[1] != "u2" || g.DriverID == nil || *g.DriverID != "d1" {
		t.Fatalf("unexpected group %+v", g)
	}
	if g.TotalFare != 52 || g.PerPersonFare != 26 {
		t.Fatalf("unexpected fares %v/%v", g.TotalFare, g.PerPersonFare)
	}
}

func TestPGStoreTransitionRideConditional(t *testing.T) {
	mock, store := newMock(t)
	g := types.ID("g1")

	mock.ExpectExec(`WHERE id = \$3 AND status = \$4`).
		WithArgs("matched", pgxmock.AnyArg(), "r1", "requested").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`WHERE id = \$3 AND status = \$4`).
		WithArgs("matched", pgxmock.AnyArg(), "r1", "requested").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.TransitionRide(context.Background(), "r1", StatusRequested, StatusMatched, &g)
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	ok, err = store.TransitionRide(context.Background(), "r1", StatusRequested, StatusMatched, &g)
	if err != nil || ok {
		t.Fatalf("expected conditional miss, got %v %v", ok, err)
	}
}

func TestPGStoreUpdateRidesNumbersPlaceholders(t *testing.T) {
	mock, store := newMock(t)
	driver := types.ID("d1")

	mock.ExpectExec(`UPDATE rides SET status = \$1, driver_id = \$2 WHERE status = ANY\(\$3\) AND rider_id = ANY\(\$4\) AND group_id = \$5`).
		WithArgs("in_progress", "d1", []string{"matched"}, []string{"u1", "u2"}, "g1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := store.UpdateRides(context.Background(),
		RideFilter{Statuses: []Status{StatusMatched}, RiderIDs: []types.ID{"u1", "u2"}, GroupID: "g1"},
		RidePatch{Status: StatusInProgress, DriverID: &driver})
	if err != nil {
		t.Fatalf("update rides: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestPGStoreAssignDriver(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectExec(`UPDATE ride_groups`).
		WithArgs("d1", "in_progress", 52.0, 26.0, "g1", "matched").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.AssignDriver(context.Background(), "g1", "d1", 52, 26)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ok {
		t.Fatalf("expected already-assigned group to report false")
	}
}

func TestPGStoreWithTxCommit(t *testing.T) {
	mock, store := newMock(t)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ride_groups`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`WHERE id = \$3 AND status = \$4`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx Store) error {
		if err := tx.CreateGroup(context.Background(), &Group{ID: "g1", RiderIDs: []types.ID{"u1", "u2"}, Status: StatusMatched, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		g := types.ID("g1")
		_, err := tx.TransitionRide(context.Background(), "r1", StatusRequested, StatusMatched, &g)
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreWithTxRollback(t *testing.T) {
	mock, store := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rides`).WillReturnError(boom)
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Store) error {
		return tx.CreateRide(context.Background(), &Ride{ID: "r1", Status: StatusMatched})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
