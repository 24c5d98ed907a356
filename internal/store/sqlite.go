package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    test_type TEXT NOT NULL DEFAULT 'email_template',
    status TEXT NOT NULL DEFAULT 'draft',
    traffic_split_percentage REAL NOT NULL,
    variant_split TEXT NOT NULL,
    control_variant TEXT NOT NULL,
    start_date INTEGER NOT NULL,
    end_date INTEGER,
    actual_start_date INTEGER,
    actual_end_date INTEGER,
    confidence_level REAL NOT NULL,
    minimum_sample_size INTEGER NOT NULL,
    minimum_effect_size REAL NOT NULL,
    statistical_power REAL NOT NULL,
    auto_promote_winner INTEGER NOT NULL DEFAULT 1,
    auto_complete_on_significance INTEGER NOT NULL DEFAULT 1,
    max_duration_days INTEGER NOT NULL,
    winner_variant TEXT NOT NULL DEFAULT '',
    winner_determined_at INTEGER,
    statistical_significance INTEGER NOT NULL DEFAULT 0,
    significance_level REAL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);

CREATE TABLE IF NOT EXISTS variants (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    label TEXT NOT NULL,
    template_id TEXT NOT NULL,
    is_control INTEGER NOT NULL DEFAULT 0,
    traffic_percentage REAL NOT NULL,
    participants_assigned INTEGER NOT NULL DEFAULT 0,
    emails_sent INTEGER NOT NULL DEFAULT 0,
    emails_delivered INTEGER NOT NULL DEFAULT 0,
    emails_opened INTEGER NOT NULL DEFAULT 0,
    emails_clicked INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_label ON variants(campaign_id, label);

CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    assigned_at INTEGER NOT NULL,
    assignment_hash REAL NOT NULL,
    delivery_id TEXT NOT NULL DEFAULT '',
    converted INTEGER NOT NULL DEFAULT 0,
    converted_at INTEGER,
    conversion_type TEXT NOT NULL DEFAULT '',
    conversion_value REAL,
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id),
    FOREIGN KEY (variant_id) REFERENCES variants(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_subject ON assignments(campaign_id, subject_id);
CREATE INDEX IF NOT EXISTS idx_assignments_lead ON assignments(subject_id);
CREATE INDEX IF NOT EXISTS idx_assignments_delivery ON assignments(delivery_id);

CREATE TABLE IF NOT EXISTS results (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    total_participants INTEGER NOT NULL,
    total_emails_sent INTEGER NOT NULL,
    total_emails_delivered INTEGER NOT NULL,
    total_emails_opened INTEGER NOT NULL,
    total_emails_clicked INTEGER NOT NULL,
    total_conversions INTEGER NOT NULL,
    test_duration_days INTEGER NOT NULL,
    primary_metric TEXT NOT NULL,
    control_variant TEXT NOT NULL,
    test_variant TEXT NOT NULL,
    control_rate REAL NOT NULL,
    test_rate REAL NOT NULL,
    lift_percentage REAL NOT NULL,
    z_score REAL NOT NULL,
    p_value REAL NOT NULL,
    confidence_interval_lower REAL NOT NULL,
    confidence_interval_upper REAL NOT NULL,
    is_significant INTEGER NOT NULL,
    confidence_level REAL NOT NULL,
    recommended_action TEXT NOT NULL,
    recommended_winner TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE INDEX IF NOT EXISTS idx_results_campaign ON results(campaign_id, created_at);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; SQLite serialises writes anyway and this keeps
	// concurrent first-touch inserts from surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const campaignColumns = `id, name, description, test_type, status, traffic_split_percentage, variant_split,
	control_variant, start_date, end_date, actual_start_date, actual_end_date, confidence_level,
	minimum_sample_size, minimum_effect_size, statistical_power, auto_promote_winner,
	auto_complete_on_significance, max_duration_days, winner_variant, winner_determined_at,
	statistical_significance, significance_level, created_at, updated_at`

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *Campaign, variants []*Variant) error {
	splitJSON, err := json.Marshal(c.VariantSplit)
	if err != nil {
		return fmt.Errorf("failed to marshal variant split: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE name = ?`, c.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check campaign name: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateName
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.TestType, string(c.Status), c.TrafficSplitPercentage, string(splitJSON),
		c.ControlVariant, c.StartDate.Unix(), nullableTime(c.EndDate), nullableTime(c.ActualStartDate),
		nullableTime(c.ActualEndDate), c.ConfidenceLevel, c.MinimumSampleSize, c.MinimumEffectSize,
		c.StatisticalPower, c.AutoPromoteWinner, c.AutoCompleteOnSignificance, c.MaxDurationDays,
		c.WinnerVariant, nullableTime(c.WinnerDeterminedAt), c.StatisticalSignificance,
		nullableFloat(c.SignificanceLevel), c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	for _, v := range variants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variants (id, campaign_id, label, template_id, is_control, traffic_percentage,
			 participants_assigned, emails_sent, emails_delivered, emails_opened, emails_clicked, conversions, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, c.ID, v.Label, v.TemplateID, v.IsControl, v.TrafficPercentage,
			v.ParticipantsAssigned, v.EmailsSent, v.EmailsDelivered, v.EmailsOpened, v.EmailsClicked, v.Conversions,
			v.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant %s: %w", v.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit campaign: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, statuses ...CampaignStatus) ([]*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC, name`
	return s.queryCampaigns(ctx, query, args...)
}

func (s *SQLiteStore) ListRunningWithAutoComplete(ctx context.Context) ([]*Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE status = ? AND auto_complete_on_significance = 1 ORDER BY created_at, name`,
		string(StatusRunning),
	)
}

func (s *SQLiteStore) queryCampaigns(ctx context.Context, query string, args ...any) ([]*Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, change StatusChange) error {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(change.To), change.At.Unix()}

	if change.ActualStartDate != nil {
		sets = append(sets, "actual_start_date = ?")
		args = append(args, change.ActualStartDate.Unix())
	}
	if change.ActualEndDate != nil {
		sets = append(sets, "actual_end_date = ?")
		args = append(args, change.ActualEndDate.Unix())
	}
	if change.WinnerVariant != "" {
		sets = append(sets, "winner_variant = ?")
		args = append(args, change.WinnerVariant)
	}
	if change.WinnerDeterminedAt != nil {
		sets = append(sets, "winner_determined_at = ?")
		args = append(args, change.WinnerDeterminedAt.Unix())
	}
	if change.StatisticalSignificance != nil {
		sets = append(sets, "statistical_significance = ?")
		args = append(args, *change.StatisticalSignificance)
	}
	if change.SignificanceLevel != nil {
		sets = append(sets, "significance_level = ?")
		args = append(args, *change.SignificanceLevel)
	}

	query := `UPDATE campaigns SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if len(change.From) > 0 {
		query += ` AND status IN (` + placeholders(len(change.From)) + `)`
		for _, st := range change.From {
			args = append(args, string(st))
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check campaign: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (s *SQLiteStore) DeleteCampaign(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first
	for _, table := range []string{"results", "assignments", "variants"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE campaign_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

const variantColumns = `id, campaign_id, label, template_id, is_control, traffic_percentage,
	participants_assigned, emails_sent, emails_delivered, emails_opened, emails_clicked, conversions, created_at`

func (s *SQLiteStore) ListVariants(ctx context.Context, campaignID string) ([]*Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE campaign_id = ? ORDER BY label`, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *SQLiteStore) GetVariant(ctx context.Context, id string) (*Variant, error) {
	v, err := scanVariant(s.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) IncrementCounters(ctx context.Context, variantID string, delta Counters) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE variants SET
			participants_assigned = participants_assigned + ?,
			emails_sent = emails_sent + ?,
			emails_delivered = emails_delivered + ?,
			emails_opened = emails_opened + ?,
			emails_clicked = emails_clicked + ?,
			conversions = conversions + ?
		 WHERE id = ?`,
		delta.ParticipantsAssigned, delta.EmailsSent, delta.EmailsDelivered,
		delta.EmailsOpened, delta.EmailsClicked, delta.Conversions, variantID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const assignmentColumns = `id, campaign_id, variant_id, subject_id, assigned_at, assignment_hash,
	delivery_id, converted, converted_at, conversion_type, conversion_value`

func (s *SQLiteStore) GetAssignment(ctx context.Context, campaignID, subjectID string) (*Assignment, error) {
	return s.getAssignment(ctx, `campaign_id = ? AND subject_id = ?`, campaignID, subjectID)
}

func (s *SQLiteStore) GetAssignmentByID(ctx context.Context, id string) (*Assignment, error) {
	return s.getAssignment(ctx, `id = ?`, id)
}

func (s *SQLiteStore) GetAssignmentByDelivery(ctx context.Context, deliveryID string) (*Assignment, error) {
	if deliveryID == "" {
		return nil, ErrNotFound
	}
	return s.getAssignment(ctx, `delivery_id = ?`, deliveryID)
}

func (s *SQLiteStore) getAssignment(ctx context.Context, where string, args ...any) (*Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE `+where+` LIMIT 1`, args...,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE subject_id = ? ORDER BY assigned_at, id`, subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *SQLiteStore) CreateAssignmentIfAbsent(ctx context.Context, a *Assignment) (*Assignment, bool, error) {
	// INSERT OR IGNORE against the (campaign_id, subject_id) unique index
	// makes first touch atomic.
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO assignments (id, campaign_id, variant_id, subject_id, assigned_at, assignment_hash, delivery_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CampaignID, a.VariantID, a.SubjectID, a.AssignedAt.Unix(), a.AssignmentHash, a.DeliveryID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	stored, err := s.GetAssignment(ctx, a.CampaignID, a.SubjectID)
	if err != nil {
		return nil, false, err
	}
	return stored, rowsAffected > 0, nil
}

func (s *SQLiteStore) LinkDelivery(ctx context.Context, assignmentID, deliveryID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET delivery_id = ? WHERE id = ?`, deliveryID, assignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to link delivery: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkConverted(ctx context.Context, assignmentID, conversionType string, value *float64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET converted = 1, converted_at = ?, conversion_type = ?, conversion_value = ?
		 WHERE id = ? AND converted = 0`,
		at.Unix(), conversionType, nullableFloat(value), assignmentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark conversion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	// Distinguish "already converted" from "no such assignment".
	if _, err := s.GetAssignmentByID(ctx, assignmentID); err != nil {
		return false, err
	}
	return false, nil
}

const resultColumns = `id, campaign_id, total_participants, total_emails_sent, total_emails_delivered,
	total_emails_opened, total_emails_clicked, total_conversions, test_duration_days, primary_metric,
	control_variant, test_variant, control_rate, test_rate, lift_percentage, z_score, p_value,
	confidence_interval_lower, confidence_interval_upper, is_significant, confidence_level,
	recommended_action, recommended_winner, created_at`

func (s *SQLiteStore) AppendResult(ctx context.Context, r *StatisticalResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CampaignID, r.TotalParticipants, r.TotalEmailsSent, r.TotalEmailsDelivered,
		r.TotalEmailsOpened, r.TotalEmailsClicked, r.TotalConversions, r.TestDurationDays, r.PrimaryMetric,
		r.ControlVariant, r.TestVariant, r.ControlRate, r.TestRate, r.LiftPercentage, r.ZScore, r.PValue,
		r.ConfidenceIntervalLower, r.ConfidenceIntervalUpper, r.IsSignificant, r.ConfidenceLevel,
		string(r.RecommendedAction), r.RecommendedWinner, r.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, campaignID string) ([]*StatisticalResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE campaign_id = ? ORDER BY created_at, rowid`, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*StatisticalResult
	for rows.Next() {
		var r StatisticalResult
		var action string
		var createdAt int64
		err := rows.Scan(&r.ID, &r.CampaignID, &r.TotalParticipants, &r.TotalEmailsSent, &r.TotalEmailsDelivered,
			&r.TotalEmailsOpened, &r.TotalEmailsClicked, &r.TotalConversions, &r.TestDurationDays, &r.PrimaryMetric,
			&r.ControlVariant, &r.TestVariant, &r.ControlRate, &r.TestRate, &r.LiftPercentage, &r.ZScore, &r.PValue,
			&r.ConfidenceIntervalLower, &r.ConfidenceIntervalUpper, &r.IsSignificant, &r.ConfidenceLevel,
			&action, &r.RecommendedWinner, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.RecommendedAction = RecommendedAction(action)
		r.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, &r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (*Campaign, error) {
	var c Campaign
	var status, splitJSON string
	var startDate, createdAt, updatedAt int64
	var endDate, actualStart, actualEnd, winnerAt sql.NullInt64
	var significance sql.NullFloat64

	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.TestType, &status, &c.TrafficSplitPercentage, &splitJSON,
		&c.ControlVariant, &startDate, &endDate, &actualStart, &actualEnd, &c.ConfidenceLevel,
		&c.MinimumSampleSize, &c.MinimumEffectSize, &c.StatisticalPower, &c.AutoPromoteWinner,
		&c.AutoCompleteOnSignificance, &c.MaxDurationDays, &c.WinnerVariant, &winnerAt,
		&c.StatisticalSignificance, &significance, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(splitJSON), &c.VariantSplit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variant split: %w", err)
	}

	c.Status = CampaignStatus(status)
	c.StartDate = time.Unix(startDate, 0)
	c.EndDate = timePtr(endDate)
	c.ActualStartDate = timePtr(actualStart)
	c.ActualEndDate = timePtr(actualEnd)
	c.WinnerDeterminedAt = timePtr(winnerAt)
	if significance.Valid {
		f := significance.Float64
		c.SignificanceLevel = &f
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)

	return &c, nil
}

func scanVariant(row scanner) (*Variant, error) {
	var v Variant
	var createdAt int64
	err := row.Scan(&v.ID, &v.CampaignID, &v.Label, &v.TemplateID, &v.IsControl, &v.TrafficPercentage,
		&v.ParticipantsAssigned, &v.EmailsSent, &v.EmailsDelivered, &v.EmailsOpened, &v.EmailsClicked,
		&v.Conversions, &createdAt)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}

func scanAssignment(row scanner) (*Assignment, error) {
	var a Assignment
	var assignedAt int64
	var convertedAt sql.NullInt64
	var value sql.NullFloat64
	err := row.Scan(&a.ID, &a.CampaignID, &a.VariantID, &a.SubjectID, &assignedAt, &a.AssignmentHash,
		&a.DeliveryID, &a.Converted, &convertedAt, &a.ConversionType, &value)
	if err != nil {
		return nil, err
	}
	a.AssignedAt = time.Unix(assignedAt, 0)
	a.ConvertedAt = timePtr(convertedAt)
	if value.Valid {
		f := value.Float64
		a.ConversionValue = &f
	}
	return &a, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
