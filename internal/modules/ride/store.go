// README: Record store contract and its PostgreSQL implementation (conditional updates, transactions).
package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"carpool/internal/infra"
	"carpool/internal/types"
)

// Store persists rides and groups. Conditional updates return false when the
// record is missing or no longer in the expected state.
type Store interface {
	CreateRide(ctx context.Context, r *Ride) error
	GetRide(ctx context.Context, id types.ID) (*Ride, error)
	// FindRide returns the most recently created match or ErrNotFound.
	FindRide(ctx context.Context, f RideFilter) (*Ride, error)
	// FindRides returns matches, most recent first.
	FindRides(ctx context.Context, f RideFilter) ([]*Ride, error)
	TransitionRide(ctx context.Context, id types.ID, from, to Status, groupID *types.ID) (bool, error)
	UpdateRides(ctx context.Context, f RideFilter, p RidePatch) (int64, error)

	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id types.ID) (*Group, error)
	FindGroups(ctx context.Context, f GroupFilter) ([]*Group, error)
	// AssignDriver succeeds only while the group is matched and has no driver.
	AssignDriver(ctx context.Context, id, driverID types.ID, totalFare, perPersonFare float64) (bool, error)
	TransitionGroup(ctx context.Context, id types.ID, from, to Status) (bool, error)

	// WithTx runs fn as one all-or-nothing unit of work.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type PGStore struct {
	db   infra.TxBeginner
	q    infra.Querier
	inTx bool
}

func NewPGStore(db infra.TxBeginner) *PGStore {
	return &PGStore{db: db, q: db}
}

const rideColumns = `id, rider_id, pickup_address, pickup_lat, pickup_lng,
	drop_address, drop_lat, drop_lng, status, driver_id,
	distance, duration, fare, group_id, created_at`

const groupColumns = `id, rider_ids, driver_id, pickup_address, pickup_lat, pickup_lng,
	drop_address, drop_lat, drop_lng, status, distance, distance_label, duration,
	total_fare, per_person_fare, created_at, updated_at`

// sqlArgs numbers placeholders as values are appended.
type sqlArgs []any

func (a *sqlArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func statusStrings(list []Status) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

func idStrings(list []types.ID) []string {
	out := make([]string, len(list))
	for i, id := range list {
		out[i] = string(id)
	}
	return out
}

func (f RideFilter) where(args *sqlArgs) string {
	var conds []string
	if len(f.Statuses) > 0 {
		conds = append(conds, "status = ANY("+args.add(statusStrings(f.Statuses))+")")
	}
	if f.RiderID != "" {
		conds = append(conds, "rider_id = "+args.add(string(f.RiderID)))
	}
	if f.ExcludeRiderID != "" {
		conds = append(conds, "rider_id <> "+args.add(string(f.ExcludeRiderID)))
	}
	if f.RiderIDs != nil {
		conds = append(conds, "rider_id = ANY("+args.add(idStrings(f.RiderIDs))+")")
	}
	if f.DriverID != "" {
		conds = append(conds, "driver_id = "+args.add(string(f.DriverID)))
	}
	if f.GroupID != "" {
		conds = append(conds, "group_id = "+args.add(string(f.GroupID)))
	}
	if f.Unassigned {
		conds = append(conds, "driver_id IS NULL")
	}
	if f.PickupContains != "" {
		conds = append(conds, "pickup_address ILIKE "+args.add("%"+escapeLike(f.PickupContains)+"%")+` ESCAPE '\'`)
	}
	if f.DropContains != "" {
		conds = append(conds, "drop_address ILIKE "+args.add("%"+escapeLike(f.DropContains)+"%")+` ESCAPE '\'`)
	}
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func (f GroupFilter) where(args *sqlArgs) string {
	var conds []string
	if len(f.Statuses) > 0 {
		conds = append(conds, "status = ANY("+args.add(statusStrings(f.Statuses))+")")
	}
	if f.DriverID != "" {
		conds = append(conds, "driver_id = "+args.add(string(f.DriverID)))
	}
	if f.Unassigned {
		conds = append(conds, "driver_id IS NULL")
	}
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func (s *PGStore) CreateRide(ctx context.Context, r *Ride) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(r.ID),
		string(r.RiderID),
		r.Pickup.Address, r.Pickup.Lat, r.Pickup.Lng,
		r.Drop.Address, r.Drop.Lat, r.Drop.Lng,
		string(r.Status),
		toStringPtr(r.DriverID),
		r.Distance,
		r.Duration,
		r.Fare,
		toStringPtr(r.GroupID),
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var id, riderID, status string
	var driverID, groupID *string
	err := row.Scan(
		&id, &riderID, &r.Pickup.Address, &r.Pickup.Lat, &r.Pickup.Lng,
		&r.Drop.Address, &r.Drop.Lat, &r.Drop.Lng, &status, &driverID,
		&r.Distance, &r.Duration, &r.Fare, &groupID, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.RiderID = types.ID(riderID)
	r.Status = Status(status)
	r.DriverID = toIDPtr(driverID)
	r.GroupID = toIDPtr(groupID)
	return &r, nil
}

func (s *PGStore) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := scanRide(s.q.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: ride %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PGStore) FindRide(ctx context.Context, f RideFilter) (*Ride, error) {
	f.Limit = 1
	rides, err := s.FindRides(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, fmt.Errorf("%w: no matching ride", ErrNotFound)
	}
	return rides[0], nil
}

func (s *PGStore) FindRides(ctx context.Context, f RideFilter) ([]*Ride, error) {
	var args sqlArgs
	query := `SELECT ` + rideColumns + ` FROM rides WHERE ` + f.where(&args) + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += " LIMIT " + args.add(f.Limit)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) TransitionRide(ctx context.Context, id types.ID, from, to Status, groupID *types.ID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    group_id = COALESCE($2, group_id)
		WHERE id = $3 AND status = $4`,
		string(to),
		toStringPtr(groupID),
		string(id),
		string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) UpdateRides(ctx context.Context, f RideFilter, p RidePatch) (int64, error) {
	var args sqlArgs
	set := "status = " + args.add(string(p.Status))
	if p.DriverID != nil {
		set += ", driver_id = " + args.add(string(*p.DriverID))
	}
	tag, err := s.q.Exec(ctx, `UPDATE rides SET `+set+` WHERE `+f.where(&args), args...)
	if err != nil {
		return 0, fmt.Errorf("update rides: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) CreateGroup(ctx context.Context, g *Group) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ride_groups (`+groupColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		string(g.ID),
		idStrings(g.RiderIDs),
		toStringPtr(g.DriverID),
		g.Pickup.Address, g.Pickup.Lat, g.Pickup.Lng,
		g.Drop.Address, g.Drop.Lat, g.Drop.Lng,
		string(g.Status),
		g.Distance,
		g.DistanceLabel,
		g.Duration,
		g.TotalFare,
		g.PerPersonFare,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	var id, status string
	var riderIDs []string
	var driverID *string
	err := row.Scan(
		&id, &riderIDs, &driverID, &g.Pickup.Address, &g.Pickup.Lat, &g.Pickup.Lng,
		&g.Drop.Address, &g.Drop.Lat, &g.Drop.Lng, &status, &g.Distance, &g.DistanceLabel, &g.Duration,
		&g.TotalFare, &g.PerPersonFare, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.ID = types.ID(id)
	g.Status = Status(status)
	g.DriverID = toIDPtr(driverID)
	g.RiderIDs = make([]types.ID, len(riderIDs))
	for i, r := range riderIDs {
		g.RiderIDs[i] = types.ID(r)
	}
	return &g, nil
}

func (s *PGStore) GetGroup(ctx context.Context, id types.ID) (*Group, error) {
	g, err := scanGroup(s.q.QueryRow(ctx, `SELECT `+groupColumns+` FROM ride_groups WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, id)
	}
	return g, err
}

func (s *PGStore) FindGroups(ctx context.Context, f GroupFilter) ([]*Group, error) {
	var args sqlArgs
	rows, err := s.q.Query(ctx, `SELECT `+groupColumns+` FROM ride_groups WHERE `+f.where(&args)+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGStore) AssignDriver(ctx context.Context, id, driverID types.ID, totalFare, perPersonFare float64) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE ride_groups
		SET driver_id = $1,
		    status = $2,
		    total_fare = $3,
		    per_person_fare = $4,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6 AND driver_id IS NULL`,
		string(driverID),
		string(StatusInProgress),
		totalFare,
		perPersonFare,
		string(id),
		string(StatusMatched),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) TransitionGroup(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE ride_groups
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to),
		string(id),
		string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PGStore{db: s.db, q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
