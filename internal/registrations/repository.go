package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aura-webinar/notifications/internal/models"
)

// DB is the query surface the repository needs. *pgxpool.Pool implements it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles webinar and registration persistence. The UNIQUE
// (webinar_id, email) constraint is the authoritative idempotence mechanism;
// pre-checks here are an optimization only.
type Repository struct {
	pool DB
}

// NewRepository creates a registrations repository.
func NewRepository(pool DB) *Repository {
	return &Repository{pool: pool}
}

// WebinarOpts are the initial attributes applied when a webinar row is first
// created. Ignored for webinars that already exist.
type WebinarOpts struct {
	ScheduledAt *time.Time
	Capacity    int
	Status      string
}

// Profile holds the attendee fields captured at registration time.
type Profile struct {
	FirstName string
	LastName  string
	Company   string
	Source    string
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const webinarColumns = `id, external_id, topic, scheduled_at, capacity, status, created_at, updated_at`

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	err := row.Scan(&w.ID, &w.ExternalID, &w.Topic, &w.ScheduledAt, &w.Capacity, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreateWebinar upserts a webinar keyed on its external slug. An existing
// row is returned unchanged; topic and opts only apply on first creation.
func (r *Repository) GetOrCreateWebinar(ctx context.Context, externalID, topic string, opts WebinarOpts) (*models.Webinar, error) {
	status := opts.Status
	if status == "" {
		status = models.WebinarStatusScheduled
	}
	const ins = `INSERT INTO webinars (id, external_id, topic, scheduled_at, capacity, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, ins, externalID, topic, opts.ScheduledAt, opts.Capacity, status); err != nil {
		return nil, fmt.Errorf("insert webinar: %w", err)
	}
	return r.GetWebinarByExternalID(ctx, externalID)
}

// GetWebinarByExternalID returns a webinar by its external slug, or nil when
// absent.
func (r *Repository) GetWebinarByExternalID(ctx context.Context, externalID string) (*models.Webinar, error) {
	w, err := scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// GetWebinarByID returns a webinar by primary key, or nil when absent.
func (r *Repository) GetWebinarByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, err := scanWebinar(r.pool.QueryRow(ctx, `SELECT `+webinarColumns+` FROM webinars WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

const registrationColumns = `id, webinar_id, email, first_name, COALESCE(last_name, ''), COALESCE(company, ''), COALESCE(source, ''),
	registration_code, status,
	confirmation_sent, confirmation_sent_at, reminder_24h_sent, reminder_24h_sent_at,
	reminder_3h_sent, reminder_3h_sent_at, reminder_15m_sent, reminder_15m_sent_at,
	created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.WebinarID, &reg.Email, &reg.FirstName, &reg.LastName, &reg.Company, &reg.Source,
		&reg.Code, &reg.Status,
		&reg.ConfirmationSent, &reg.ConfirmationSentAt, &reg.Reminder24hSent, &reg.Reminder24hSentAt,
		&reg.Reminder3hSent, &reg.Reminder3hSentAt, &reg.Reminder15mSent, &reg.Reminder15mSentAt,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CreateOrGetRegistration inserts a registration or returns the existing row
// for (webinarID, email) without mutating it. The second return value reports
// whether a new row was created; scheduling only happens for new rows.
//
// A concurrent duplicate insert loses the ON CONFLICT race and is resolved by
// re-reading the winner's row, never by surfacing a constraint violation.
func (r *Repository) CreateOrGetRegistration(ctx context.Context, webinarID uuid.UUID, email string, p Profile) (*models.Registration, bool, error) {
	email = NormalizeEmail(email)

	existing, err := r.GetRegistrationByWebinarAndEmail(ctx, webinarID, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	const ins = `INSERT INTO registrations (id, webinar_id, email, first_name, last_name, company, source, registration_code)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		ON CONFLICT (webinar_id, email) DO NOTHING
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.pool.QueryRow(ctx, ins, webinarID, email, p.FirstName, p.LastName, p.Company, p.Source, NewRegistrationCode()))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race to a concurrent identical request.
		winner, rerr := r.GetRegistrationByWebinarAndEmail(ctx, webinarID, email)
		if rerr != nil {
			return nil, false, rerr
		}
		if winner == nil {
			return nil, false, fmt.Errorf("registration for %s vanished after conflict", email)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert registration: %w", err)
	}
	return reg, true, nil
}

// GetRegistrationByID returns a registration by primary key, or nil when absent.
func (r *Repository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// GetRegistrationByWebinarAndEmail returns the registration for
// (webinarID, email), or nil when absent. Email must already be normalized.
func (r *Repository) GetRegistrationByWebinarAndEmail(ctx context.Context, webinarID uuid.UUID, email string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE webinar_id = $1 AND email = $2`, webinarID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return reg, err
}

// ListByWebinar returns all registrations for a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE webinar_id = $1 ORDER BY created_at DESC`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// sentColumns maps a notification kind to its flag and timestamp columns.
// Kinds outside this map are rejected before any SQL is built.
var sentColumns = map[string][2]string{
	models.NotificationConfirmation: {"confirmation_sent", "confirmation_sent_at"},
	models.NotificationReminder24h:  {"reminder_24h_sent", "reminder_24h_sent_at"},
	models.NotificationReminder3h:   {"reminder_3h_sent", "reminder_3h_sent_at"},
	models.NotificationReminder15m:  {"reminder_15m_sent", "reminder_15m_sent_at"},
}

// MarkSent sets the sent flag and timestamp for one notification kind. Flags
// are monotonic: a second call for the same kind matches no row and keeps the
// first call's timestamp.
func (r *Repository) MarkSent(ctx context.Context, registrationID uuid.UUID, kind string) error {
	cols, ok := sentColumns[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	q := fmt.Sprintf(`UPDATE registrations SET %s = TRUE, %s = NOW(), updated_at = NOW()
		WHERE id = $1 AND %s = FALSE`, cols[0], cols[1], cols[0])
	_, err := r.pool.Exec(ctx, q, registrationID)
	return err
}

// CountActive counts registrations with status registered or attended,
// optionally scoped to one webinar.
func (r *Repository) CountActive(ctx context.Context, webinarID *uuid.UUID) (int, error) {
	var count int
	var err error
	if webinarID != nil {
		err = r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations WHERE webinar_id = $1 AND status IN ($2, $3)`,
			*webinarID, models.RegistrationStatusRegistered, models.RegistrationStatusAttended).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations WHERE status IN ($1, $2)`,
			models.RegistrationStatusRegistered, models.RegistrationStatusAttended).Scan(&count)
	}
	return count, err
}
