package incident

import (
	"context"
	"errors"
	"watchtower/pkg/apperror"
	"watchtower/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id            UUID PRIMARY KEY,
	target_id     TEXT NOT NULL,
	status        TEXT NOT NULL,
	cause_summary TEXT NOT NULL,
	opened_at     TIMESTAMPTZ NOT NULL,
	closed_at     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS incidents_one_open_per_target
	ON incidents (target_id) WHERE status <> 'closed';

CREATE TABLE IF NOT EXISTS remediation_attempts (
	id             UUID PRIMARY KEY,
	incident_id    UUID NOT NULL REFERENCES incidents(id),
	action_name    TEXT NOT NULL,
	attempt_number INT NOT NULL,
	outcome        TEXT NOT NULL,
	detail         TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS remediation_attempts_incident
	ON remediation_attempts (incident_id, attempt_number);
`

// PostgresRepository stores incidents in postgres. The partial unique index
// backs the one-open-incident-per-target invariant at the storage layer too.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func NewPostgresRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}
}

// EnsureSchema bootstraps the tables, mirroring the startup path of the
// incident database this service replaces.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const op string = "repo.incident.ensure_schema"

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *PostgresRepository) SaveIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.incident.save"
	const q = `
		INSERT INTO incidents (id, target_id, status, cause_summary, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, q,
		utils.ToPgUUID(inc.ID),
		inc.TargetID,
		string(inc.Status),
		inc.CauseSummary,
		utils.ToPgTimestamptz(inc.OpenedAt),
		utils.ToPgTimestamptz(inc.ClosedAt),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *PostgresRepository) UpdateIncident(ctx context.Context, inc *Incident) error {
	const op string = "repo.incident.update"
	const q = `
		UPDATE incidents
		SET status = $2, closed_at = $3
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, q,
		utils.ToPgUUID(inc.ID),
		string(inc.Status),
		utils.ToPgTimestamptz(inc.ClosedAt),
	)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      op,
			Message: "incident not found",
		}
	}
	return nil
}

func (r *PostgresRepository) AppendAttempt(ctx context.Context, attempt *RemediationAttempt) error {
	const op string = "repo.incident.append_attempt"
	const q = `
		INSERT INTO remediation_attempts
			(id, incident_id, action_name, attempt_number, outcome, detail, started_at, finished_at)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(attempt_number), 0) + 1
			   FROM remediation_attempts WHERE incident_id = $2),
			$4, $5, $6, $7)
		RETURNING attempt_number
	`

	err := r.pool.QueryRow(ctx, q,
		utils.ToPgUUID(attempt.ID),
		utils.ToPgUUID(attempt.IncidentID),
		attempt.ActionName,
		string(attempt.Outcome),
		utils.ToPgText(attempt.Detail),
		utils.ToPgTimestamptz(attempt.StartedAt),
		utils.ToPgTimestamptz(attempt.FinishedAt),
	).Scan(&attempt.AttemptNumber)
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	return nil
}

func (r *PostgresRepository) GetIncident(ctx context.Context, id uuid.UUID) (*Incident, error) {
	const op string = "repo.incident.get"
	const q = `
		SELECT id, target_id, status, cause_summary, opened_at, closed_at
		FROM incidents WHERE id = $1
	`

	inc, err := r.scanIncident(r.pool.QueryRow(ctx, q, utils.ToPgUUID(id)))
	if err != nil {
		return nil, utils.WrapRepoError(op, err, true, r.logger)
	}

	if err := r.loadAttempts(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (r *PostgresRepository) FindOpenIncident(ctx context.Context, targetID string) (*Incident, error) {
	const op string = "repo.incident.find_open"
	const q = `
		SELECT id, target_id, status, cause_summary, opened_at, closed_at
		FROM incidents WHERE target_id = $1 AND status <> 'closed'
	`

	inc, err := r.scanIncident(r.pool.QueryRow(ctx, q, targetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}

	if err := r.loadAttempts(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (r *PostgresRepository) ListOpenIncidents(ctx context.Context) ([]Incident, error) {
	const q = `
		SELECT id, target_id, status, cause_summary, opened_at, closed_at
		FROM incidents WHERE status <> 'closed'
		ORDER BY opened_at
	`
	return r.queryIncidents(ctx, "repo.incident.list_open", q)
}

func (r *PostgresRepository) ListIncidents(ctx context.Context, status Status, limit, offset int32) ([]Incident, error) {
	if status == "" {
		const q = `
			SELECT id, target_id, status, cause_summary, opened_at, closed_at
			FROM incidents ORDER BY opened_at DESC LIMIT $1 OFFSET $2
		`
		return r.queryIncidents(ctx, "repo.incident.list", q, limit, offset)
	}

	const q = `
		SELECT id, target_id, status, cause_summary, opened_at, closed_at
		FROM incidents WHERE status = $1
		ORDER BY opened_at DESC LIMIT $2 OFFSET $3
	`
	return r.queryIncidents(ctx, "repo.incident.list", q, string(status), limit, offset)
}

func (r *PostgresRepository) queryIncidents(ctx context.Context, op, q string, args ...any) ([]Incident, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := r.scanIncident(rows)
		if err != nil {
			return nil, utils.WrapRepoError(op, err, false, r.logger)
		}
		out = append(out, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.WrapRepoError(op, err, false, r.logger)
	}
	return out, nil
}

func (r *PostgresRepository) scanIncident(row pgx.Row) (*Incident, error) {
	var (
		inc      Incident
		id       pgtype.UUID
		status   string
		openedAt pgtype.Timestamptz
		closedAt pgtype.Timestamptz
	)

	if err := row.Scan(&id, &inc.TargetID, &status, &inc.CauseSummary, &openedAt, &closedAt); err != nil {
		return nil, err
	}

	inc.ID = utils.FromPgUUID(id)
	inc.Status = Status(status)
	inc.OpenedAt = utils.FromPgTimestamptz(openedAt)
	inc.ClosedAt = utils.FromPgTimestamptz(closedAt)
	return &inc, nil
}

func (r *PostgresRepository) loadAttempts(ctx context.Context, inc *Incident) error {
	const op string = "repo.incident.load_attempts"
	const q = `
		SELECT id, incident_id, action_name, attempt_number, outcome, detail, started_at, finished_at
		FROM remediation_attempts WHERE incident_id = $1
		ORDER BY attempt_number
	`

	rows, err := r.pool.Query(ctx, q, utils.ToPgUUID(inc.ID))
	if err != nil {
		return utils.WrapRepoError(op, err, false, r.logger)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a          RemediationAttempt
			id         pgtype.UUID
			incidentID pgtype.UUID
			outcome    string
			detail     pgtype.Text
			startedAt  pgtype.Timestamptz
			finishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &incidentID, &a.ActionName, &a.AttemptNumber, &outcome, &detail, &startedAt, &finishedAt); err != nil {
			return utils.WrapRepoError(op, err, false, r.logger)
		}
		a.ID = utils.FromPgUUID(id)
		a.IncidentID = utils.FromPgUUID(incidentID)
		a.Outcome = AttemptOutcome(outcome)
		a.Detail = utils.FromPgText(detail)
		a.StartedAt = utils.FromPgTimestamptz(startedAt)
		a.FinishedAt = utils.FromPgTimestamptz(finishedAt)
		inc.Attempts = append(inc.Attempts, a)
	}
	return rows.Err()
}
