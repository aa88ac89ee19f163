package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scheduling-service/internal/schedule"
)

var (
	ErrEventTypeNotFound = errors.New("event type not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSlotTaken         = errors.New("slot already booked")
)

// Store is the persistence boundary the handlers talk to.
type Store interface {
	CreateEventType(ctx context.Context, et *schedule.EventType) error
	UpdateEventType(ctx context.Context, et *schedule.EventType) error
	GetEventType(ctx context.Context, id uuid.UUID) (*schedule.EventType, error)
	DeleteEventType(ctx context.Context, id uuid.UUID) error

	CreateBooking(ctx context.Context, b *Booking) error
	SetCalendarLink(ctx context.Context, bookingID uuid.UUID, link string) error
	CancelBooking(ctx context.Context, id uuid.UUID) error
	ListConfirmedBookings(ctx context.Context, eventTypeID uuid.UUID, fromUTC, toUTC time.Time) ([]Booking, error)
	ListBookings(ctx context.Context, eventTypeID uuid.UUID, fromUTC, toUTC time.Time, filtered bool) ([]Booking, error)

	ListCalendarConnections(ctx context.Context, eventTypeID uuid.UUID) ([]CalendarConnection, error)
}

// PGStore implements Store on a pgx pool. Event type questions, settings and
// team member lists are stored as jsonb.
type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

func (s *PGStore) CreateEventType(ctx context.Context, et *schedule.EventType) error {
	if et.ID == uuid.Nil {
		et.ID = uuid.New()
	}
	now := time.Now().UTC()
	et.CreatedAt, et.UpdatedAt = now, now

	questions, settings, members, err := marshalEventType(et)
	if err != nil {
		return err
	}
	q := `INSERT INTO event_types
	      (id, title, description, duration_minutes, location, questions, scheduling_settings, team_member_ids, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = s.DB.Exec(ctx, q, et.ID, et.Title, et.Description, et.DurationMins,
		string(et.Location), questions, settings, members, et.CreatedAt, et.UpdatedAt)
	return err
}

func (s *PGStore) UpdateEventType(ctx context.Context, et *schedule.EventType) error {
	et.UpdatedAt = time.Now().UTC()

	questions, settings, members, err := marshalEventType(et)
	if err != nil {
		return err
	}
	q := `UPDATE event_types
	      SET title=$1, description=$2, duration_minutes=$3, location=$4,
	          questions=$5, scheduling_settings=$6, team_member_ids=$7, updated_at=$8
	      WHERE id=$9`
	tag, err := s.DB.Exec(ctx, q, et.Title, et.Description, et.DurationMins, string(et.Location),
		questions, settings, members, et.UpdatedAt, et.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventTypeNotFound
	}
	return nil
}

func (s *PGStore) GetEventType(ctx context.Context, id uuid.UUID) (*schedule.EventType, error) {
	q := `SELECT id, title, description, duration_minutes, location, questions, scheduling_settings, team_member_ids, created_at, updated_at
	      FROM event_types WHERE id=$1`
	var (
		et        schedule.EventType
		location  string
		questions []byte
		settings  []byte
		members   []byte
	)
	err := s.DB.QueryRow(ctx, q, id).Scan(&et.ID, &et.Title, &et.Description, &et.DurationMins,
		&location, &questions, &settings, &members, &et.CreatedAt, &et.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	et.Location = schedule.LocationKind(location)
	if err := json.Unmarshal(questions, &et.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := json.Unmarshal(settings, &et.Scheduling); err != nil {
		return nil, fmt.Errorf("decode scheduling settings: %w", err)
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &et.TeamMemberIDs); err != nil {
			return nil, fmt.Errorf("decode team members: %w", err)
		}
	}
	return &et, nil
}

func (s *PGStore) DeleteEventType(ctx context.Context, id uuid.UUID) error {
	// Bookings keep their own duration/question snapshot and survive this.
	tag, err := s.DB.Exec(ctx, `DELETE FROM event_types WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventTypeNotFound
	}
	return nil
}

// CreateBooking inserts inside a transaction that first locks any confirmed
// booking at the same start. The unique index on (event_type_id,
// start_at_utc) where status='confirmed' stays the authoritative guard: a
// concurrent submission that slips past the check loses on the index and is
// reported as ErrSlotTaken, the same signal the logical check produces.
func (s *PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = StatusConfirmed
	b.CreatedAt = time.Now().UTC()

	questions, err := json.Marshal(b.Questions)
	if err != nil {
		return err
	}
	answers, err := json.Marshal(b.Answers)
	if err != nil {
		return err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	checkQ := `SELECT id FROM bookings
	           WHERE event_type_id=$1 AND status='confirmed' AND start_at_utc=$2
	           FOR UPDATE`
	err = tx.QueryRow(ctx, checkQ, b.EventTypeID, b.StartAtUTC).Scan(&existing)
	if err == nil {
		return ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	insertQ := `INSERT INTO bookings
	            (id, event_type_id, start_at_utc, end_at_utc, status, calendar_link, duration_minutes, questions, answers, created_at)
	            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = tx.Exec(ctx, insertQ, b.ID, b.EventTypeID, b.StartAtUTC, b.EndAtUTC,
		b.Status, b.CalendarLink, b.DurationMins, questions, answers, b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrSlotTaken
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) SetCalendarLink(ctx context.Context, bookingID uuid.UUID, link string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE bookings SET calendar_link=$1 WHERE id=$2`, link, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (s *PGStore) CancelBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE bookings SET status=$1 WHERE id=$2 AND status <> $1`, StatusCancelled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (s *PGStore) ListConfirmedBookings(ctx context.Context, eventTypeID uuid.UUID, fromUTC, toUTC time.Time) ([]Booking, error) {
	q := `SELECT id, event_type_id, start_at_utc, end_at_utc, status, calendar_link, duration_minutes, created_at
	      FROM bookings
	      WHERE event_type_id=$1 AND status='confirmed' AND start_at_utc >= $2 AND start_at_utc < $3
	      ORDER BY start_at_utc`
	rows, err := s.DB.Query(ctx, q, eventTypeID, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *PGStore) ListBookings(ctx context.Context, eventTypeID uuid.UUID, fromUTC, toUTC time.Time, filtered bool) ([]Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filtered {
		q := `SELECT id, event_type_id, start_at_utc, end_at_utc, status, calendar_link, duration_minutes, created_at
		      FROM bookings
		      WHERE event_type_id=$1 AND start_at_utc >= $2 AND start_at_utc < $3
		      ORDER BY start_at_utc`
		rows, err = s.DB.Query(ctx, q, eventTypeID, fromUTC, toUTC)
	} else {
		q := `SELECT id, event_type_id, start_at_utc, end_at_utc, status, calendar_link, duration_minutes, created_at
		      FROM bookings
		      WHERE event_type_id=$1
		      ORDER BY start_at_utc`
		rows, err = s.DB.Query(ctx, q, eventTypeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *PGStore) ListCalendarConnections(ctx context.Context, eventTypeID uuid.UUID) ([]CalendarConnection, error) {
	q := `SELECT id, event_type_id, provider, credentials, calendar_ids
	      FROM calendar_connections WHERE event_type_id=$1 ORDER BY id`
	rows, err := s.DB.Query(ctx, q, eventTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalendarConnection
	for rows.Next() {
		var (
			c     CalendarConnection
			creds []byte
		)
		if err := rows.Scan(&c.ID, &c.EventTypeID, &c.Provider, &creds, &c.CalendarIDs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(creds, &c.Credentials); err != nil {
			return nil, fmt.Errorf("decode calendar credentials: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.EventTypeID, &b.StartAtUTC, &b.EndAtUTC,
			&b.Status, &b.CalendarLink, &b.DurationMins, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func marshalEventType(et *schedule.EventType) (questions, settings, members []byte, err error) {
	if questions, err = json.Marshal(et.Questions); err != nil {
		return nil, nil, nil, err
	}
	if settings, err = json.Marshal(et.Scheduling); err != nil {
		return nil, nil, nil, err
	}
	if members, err = json.Marshal(et.TeamMemberIDs); err != nil {
		return nil, nil, nil, err
	}
	return questions, settings, members, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
