package emaillogs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/notifications/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one dispatch attempt record. Every send attempt, successful
// or failed, gets its own row.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, webinar_id, registration_id, email_type, recipient_email, subject, status, provider_message_id, error_message, sent_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		el.WebinarID, el.RegistrationID, el.EmailType, el.RecipientEmail,
		el.Subject, el.Status, el.ProviderMessageID, el.ErrorMessage, el.SentAt,
	).Scan(&el.ID, &el.CreatedAt)
}

// ListByWebinar returns email logs for a webinar, newest first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, webinar_id, registration_id, email_type, recipient_email,
		COALESCE(subject, ''), status, COALESCE(provider_message_id, ''), COALESCE(error_message, ''), sent_at, created_at
		FROM email_logs
		WHERE webinar_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.WebinarID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail,
			&el.Subject, &el.Status, &el.ProviderMessageID, &el.ErrorMessage, &el.SentAt, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
