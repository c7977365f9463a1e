package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"wastetrack/internal/bordereau/models"
	"wastetrack/pkg/platform/sentinel"
	"wastetrack/pkg/platform/tx"
)

// PostgresStore persists bordereaux in PostgreSQL. Every query runs against
// the transaction carried by ctx when one is open, so composed service
// operations commit atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed bordereau store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is the subset of *sql.DB and *sql.Tx the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// RunInTx opens a transaction and carries it in ctx for every nested store
// call. A call made while a transaction is already open joins it.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer t.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx.WithTx(ctx, t)); err != nil {
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const formColumns = `id, readable_id, status, version,
	emitter_type, is_deleted, no_traceability, recipient_is_temp_storage,
	emitter_company_siret, emitter_company_name,
	recipient_company_siret, recipient_company_name, recipient_cap,
	trader_company_siret, trader_company_name,
	broker_company_siret, broker_company_name,
	eco_organisme_siret, eco_organisme_name, intermediary_sirets,
	waste_details_code, waste_details_name, waste_details_is_dangerous,
	waste_details_pop, waste_details_quantity, waste_details_packagings,
	quantity_received, quantity_refused, waste_acceptation_status,
	waste_refusal_reason, processing_operation_done, processing_operation_desc,
	destination_operation_mode,
	next_destination_company_siret, next_destination_processing_operation,
	sent_at, received_at, received_by, signed_at, processed_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (*models.Form, error) {
	var (
		f             models.Form
		intermediates pq.StringArray
		wdq, qr, qrf  sql.NullFloat64
		opMode        sql.NullString
		sentAt, recAt sql.NullTime
		sigAt, prcAt  sql.NullTime
	)
	err := row.Scan(
		&f.ID, &f.ReadableID, &f.Status, &f.Version,
		&f.EmitterType, &f.IsDeleted, &f.NoTraceability, &f.RecipientIsTempStorage,
		&f.EmitterCompanySiret, &f.EmitterCompanyName,
		&f.RecipientCompanySiret, &f.RecipientCompanyName, &f.RecipientCap,
		&f.TraderCompanySiret, &f.TraderCompanyName,
		&f.BrokerCompanySiret, &f.BrokerCompanyName,
		&f.EcoOrganismeSiret, &f.EcoOrganismeName, &intermediates,
		&f.WasteDetailsCode, &f.WasteDetailsName, &f.WasteDetailsIsDangerous,
		&f.WasteDetailsPop, &wdq, &f.WasteDetailsPackagings,
		&qr, &qrf, &f.WasteAcceptationStatus,
		&f.WasteRefusalReason, &f.ProcessingOperationDone, &f.ProcessingOperationDesc,
		&opMode,
		&f.NextDestinationCompanySiret, &f.NextDestinationProcessingOperation,
		&sentAt, &recAt, &f.ReceivedBy, &sigAt, &prcAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan bordereau: %w", err)
	}
	f.IntermediarySirets = []string(intermediates)
	if wdq.Valid {
		f.WasteDetailsQuantity = &wdq.Float64
	}
	if qr.Valid {
		f.QuantityReceived = &qr.Float64
	}
	if qrf.Valid {
		f.QuantityRefused = &qrf.Float64
	}
	if opMode.Valid {
		f.DestinationOperationMode = &opMode.String
	}
	if sentAt.Valid {
		f.SentAt = &sentAt.Time
	}
	if recAt.Valid {
		f.ReceivedAt = &recAt.Time
	}
	if sigAt.Valid {
		f.SignedAt = &sigAt.Time
	}
	if prcAt.Valid {
		f.ProcessedAt = &prcAt.Time
	}
	return &f, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func (s *PostgresStore) CreateForm(ctx context.Context, f *models.Form) error {
	f.Version = 1
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO forms (`+formColumns+`, party_sirets)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
		        $18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,
		        $33,$34,$35,$36,$37,$38,$39,$40,$41,$42,$43)`,
		formArgs(f)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create bordereau: %w", err)
	}
	return s.writeSatellites(ctx, f)
}

func formArgs(f *models.Form) []any {
	return []any{
		f.ID, f.ReadableID, f.Status, f.Version,
		f.EmitterType, f.IsDeleted, f.NoTraceability, f.RecipientIsTempStorage,
		f.EmitterCompanySiret, f.EmitterCompanyName,
		f.RecipientCompanySiret, f.RecipientCompanyName, f.RecipientCap,
		f.TraderCompanySiret, f.TraderCompanyName,
		f.BrokerCompanySiret, f.BrokerCompanyName,
		f.EcoOrganismeSiret, f.EcoOrganismeName, pq.Array(f.IntermediarySirets),
		f.WasteDetailsCode, f.WasteDetailsName, f.WasteDetailsIsDangerous,
		f.WasteDetailsPop, nullFloat(f.WasteDetailsQuantity), f.WasteDetailsPackagings,
		nullFloat(f.QuantityReceived), nullFloat(f.QuantityRefused), f.WasteAcceptationStatus,
		f.WasteRefusalReason, f.ProcessingOperationDone, f.ProcessingOperationDesc,
		nullString(f.DestinationOperationMode),
		f.NextDestinationCompanySiret, f.NextDestinationProcessingOperation,
		f.SentAt, f.ReceivedAt, f.ReceivedBy, f.SignedAt, f.ProcessedAt,
		f.CreatedAt, f.UpdatedAt,
		pq.Array(f.PartySirets()),
	}
}

func (s *PostgresStore) FindForm(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	return s.findForm(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id)
}

func (s *PostgresStore) FindFormByReadableID(ctx context.Context, readableID string) (*models.Form, error) {
	return s.findForm(ctx, `SELECT `+formColumns+` FROM forms WHERE readable_id = $1`, readableID)
}

// FindFormForUpdate takes a row lock for the open transaction so concurrent
// transitions on the same bordereau serialize.
func (s *PostgresStore) FindFormForUpdate(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	return s.findForm(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) findForm(ctx context.Context, query string, arg any) (*models.Form, error) {
	f, err := scanForm(s.q(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := s.loadSatellites(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *PostgresStore) loadSatellites(ctx context.Context, f *models.Form) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, form_id, number, company_siret, company_name, taken_over_at, taken_over_by
		FROM form_transporters WHERE form_id = $1 ORDER BY number`, f.ID)
	if err != nil {
		return fmt.Errorf("load transport legs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t     models.Transporter
			taken sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.FormID, &t.Number, &t.CompanySiret, &t.CompanyName, &taken, &t.TakenOverBy); err != nil {
			return fmt.Errorf("scan transport leg: %w", err)
		}
		if taken.Valid {
			t.TakenOverAt = &taken.Time
		}
		f.Transporters = append(f.Transporters, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate transport legs: %w", err)
	}

	var (
		d     models.TempStorageDetail
		qty   sql.NullFloat64
		recAt sql.NullTime
	)
	err = s.q(ctx).QueryRowContext(ctx, `
		SELECT form_id, destination_company_siret, destination_cap,
		       destination_processing_operation, temporary_storer_quantity_type,
		       temporary_storer_quantity_received, temporary_storer_acceptation_status,
		       temporary_storer_waste_refusal_reason, temporary_storer_received_at,
		       temporary_storer_received_by
		FROM form_temp_storage WHERE form_id = $1`, f.ID,
	).Scan(&d.FormID, &d.DestinationCompanySiret, &d.DestinationCap,
		&d.DestinationProcessingOperation, &d.TemporaryStorerQuantityType,
		&qty, &d.TemporaryStorerAcceptationStatus,
		&d.TemporaryStorerWasteRefusalReason, &recAt, &d.TemporaryStorerReceivedBy)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("load temp storage detail: %w", err)
	}
	if qty.Valid {
		d.TemporaryStorerQuantityReceived = &qty.Float64
	}
	if recAt.Valid {
		d.TemporaryStorerReceivedAt = &recAt.Time
	}
	f.TempStorage = &d
	return nil
}

// UpdateForm persists the document and its satellites under an optimistic
// version check: a stale version means another transaction won the race.
func (s *PostgresStore) UpdateForm(ctx context.Context, f *models.Form) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE forms SET
			status = $3, version = version + 1,
			emitter_type = $4, is_deleted = $5, no_traceability = $6,
			recipient_is_temp_storage = $7,
			emitter_company_siret = $8, emitter_company_name = $9,
			recipient_company_siret = $10, recipient_company_name = $11,
			recipient_cap = $12,
			trader_company_siret = $13, trader_company_name = $14,
			broker_company_siret = $15, broker_company_name = $16,
			eco_organisme_siret = $17, eco_organisme_name = $18,
			intermediary_sirets = $19,
			waste_details_code = $20, waste_details_name = $21,
			waste_details_is_dangerous = $22, waste_details_pop = $23,
			waste_details_quantity = $24, waste_details_packagings = $25,
			quantity_received = $26, quantity_refused = $27,
			waste_acceptation_status = $28, waste_refusal_reason = $29,
			processing_operation_done = $30, processing_operation_desc = $31,
			destination_operation_mode = $32,
			next_destination_company_siret = $33,
			next_destination_processing_operation = $34,
			sent_at = $35, received_at = $36, received_by = $37,
			signed_at = $38, processed_at = $39, updated_at = $40,
			party_sirets = $41
		WHERE id = $1 AND version = $2`,
		f.ID, f.Version, f.Status,
		f.EmitterType, f.IsDeleted, f.NoTraceability, f.RecipientIsTempStorage,
		f.EmitterCompanySiret, f.EmitterCompanyName,
		f.RecipientCompanySiret, f.RecipientCompanyName, f.RecipientCap,
		f.TraderCompanySiret, f.TraderCompanyName,
		f.BrokerCompanySiret, f.BrokerCompanyName,
		f.EcoOrganismeSiret, f.EcoOrganismeName, pq.Array(f.IntermediarySirets),
		f.WasteDetailsCode, f.WasteDetailsName,
		f.WasteDetailsIsDangerous, f.WasteDetailsPop,
		nullFloat(f.WasteDetailsQuantity), f.WasteDetailsPackagings,
		nullFloat(f.QuantityReceived), nullFloat(f.QuantityRefused),
		f.WasteAcceptationStatus, f.WasteRefusalReason,
		f.ProcessingOperationDone, f.ProcessingOperationDesc,
		nullString(f.DestinationOperationMode),
		f.NextDestinationCompanySiret, f.NextDestinationProcessingOperation,
		f.SentAt, f.ReceivedAt, f.ReceivedBy,
		f.SignedAt, f.ProcessedAt, f.UpdatedAt,
		pq.Array(f.PartySirets()),
	)
	if err != nil {
		return fmt.Errorf("update bordereau: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bordereau: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.q(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`, f.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update bordereau: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}
	f.Version++
	return s.writeSatellites(ctx, f)
}

func (s *PostgresStore) writeSatellites(ctx context.Context, f *models.Form) error {
	if _, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM form_transporters WHERE form_id = $1`, f.ID); err != nil {
		return fmt.Errorf("replace transport legs: %w", err)
	}
	for i := range f.Transporters {
		t := &f.Transporters[i]
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.FormID = f.ID
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO form_transporters
				(id, form_id, number, company_siret, company_name, taken_over_at, taken_over_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.FormID, t.Number, t.CompanySiret, t.CompanyName, t.TakenOverAt, t.TakenOverBy,
		); err != nil {
			return fmt.Errorf("insert transport leg: %w", err)
		}
	}
	if f.TempStorage != nil {
		f.TempStorage.FormID = f.ID
		if err := s.UpdateTempStorage(ctx, f.TempStorage); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) DeleteForm(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE forms SET is_deleted = TRUE, version = version + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bordereau: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bordereau: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateTempStorage(ctx context.Context, d *models.TempStorageDetail) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO form_temp_storage
			(form_id, destination_company_siret, destination_cap,
			 destination_processing_operation, temporary_storer_quantity_type,
			 temporary_storer_quantity_received, temporary_storer_acceptation_status,
			 temporary_storer_waste_refusal_reason, temporary_storer_received_at,
			 temporary_storer_received_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (form_id) DO UPDATE SET
			destination_company_siret = EXCLUDED.destination_company_siret,
			destination_cap = EXCLUDED.destination_cap,
			destination_processing_operation = EXCLUDED.destination_processing_operation,
			temporary_storer_quantity_type = EXCLUDED.temporary_storer_quantity_type,
			temporary_storer_quantity_received = EXCLUDED.temporary_storer_quantity_received,
			temporary_storer_acceptation_status = EXCLUDED.temporary_storer_acceptation_status,
			temporary_storer_waste_refusal_reason = EXCLUDED.temporary_storer_waste_refusal_reason,
			temporary_storer_received_at = EXCLUDED.temporary_storer_received_at,
			temporary_storer_received_by = EXCLUDED.temporary_storer_received_by`,
		d.FormID, d.DestinationCompanySiret, d.DestinationCap,
		d.DestinationProcessingOperation, d.TemporaryStorerQuantityType,
		nullFloat(d.TemporaryStorerQuantityReceived), d.TemporaryStorerAcceptationStatus,
		d.TemporaryStorerWasteRefusalReason, d.TemporaryStorerReceivedAt,
		d.TemporaryStorerReceivedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert temp storage detail: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendStatusLog(ctx context.Context, entry *models.StatusLog) error {
	fields, err := json.Marshal(entry.UpdatedFields)
	if err != nil {
		return fmt.Errorf("marshal status log fields: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO status_logs (id, form_id, user_id, auth_type, status, logged_at, updated_fields)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.FormID, entry.UserID, entry.AuthType, entry.Status, entry.LoggedAt, fields,
	)
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStatusLogs(ctx context.Context, formID uuid.UUID) ([]models.StatusLog, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, form_id, user_id, auth_type, status, logged_at, updated_fields
		FROM status_logs WHERE form_id = $1 ORDER BY logged_at, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	defer rows.Close()

	var out []models.StatusLog
	for rows.Next() {
		var (
			entry  models.StatusLog
			fields []byte
		)
		if err := rows.Scan(&entry.ID, &entry.FormID, &entry.UserID, &entry.AuthType,
			&entry.Status, &entry.LoggedAt, &fields); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &entry.UpdatedFields); err != nil {
				return nil, fmt.Errorf("unmarshal status log fields: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GroupementsByNextForm(ctx context.Context, nextFormID uuid.UUID) ([]models.Groupement, error) {
	return s.listGroupements(ctx,
		`SELECT id, initial_form_id, next_form_id, quantity
		 FROM groupements WHERE next_form_id = $1`, nextFormID)
}

func (s *PostgresStore) GroupementsByInitialForm(ctx context.Context, initialFormID uuid.UUID) ([]models.Groupement, error) {
	return s.listGroupements(ctx,
		`SELECT id, initial_form_id, next_form_id, quantity
		 FROM groupements WHERE initial_form_id = $1`, initialFormID)
}

func (s *PostgresStore) listGroupements(ctx context.Context, query string, arg any) ([]models.Groupement, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list groupements: %w", err)
	}
	defer rows.Close()

	var out []models.Groupement
	for rows.Next() {
		var g models.Groupement
		if err := rows.Scan(&g.ID, &g.InitialFormID, &g.NextFormID, &g.Quantity); err != nil {
			return nil, fmt.Errorf("scan groupement: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertGroupement(ctx context.Context, link *models.Groupement) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO groupements (id, initial_form_id, next_form_id, quantity)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (initial_form_id, next_form_id)
		DO UPDATE SET quantity = EXCLUDED.quantity`,
		link.ID, link.InitialFormID, link.NextFormID, link.Quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert groupement: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGroupement(ctx context.Context, initialFormID, nextFormID uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM groupements WHERE initial_form_id = $1 AND next_form_id = $2`,
		initialFormID, nextFormID)
	if err != nil {
		return fmt.Errorf("delete groupement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete groupement: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error {
	content, err := json.Marshal(r.Content)
	if err != nil {
		return fmt.Errorf("marshal revision content: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO revision_requests
			(id, form_id, authoring_company_siret, status, comment, content, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.FormID, r.AuthoringCompanySiret, r.Status, r.Comment, content, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create revision request: %w", err)
	}
	for i := range r.Approvals {
		a := &r.Approvals[i]
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO revision_approvals
				(id, revision_request_id, approver_siret, status, comment)
			VALUES ($1,$2,$3,$4,$5)`,
			a.ID, a.RevisionRequestID, a.ApproverSiret, a.Status, a.Comment,
		); err != nil {
			return fmt.Errorf("create revision approval: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindRevisionRequest(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error) {
	return s.findRevision(ctx, `
		SELECT id, form_id, authoring_company_siret, status, comment, content, created_at
		FROM revision_requests WHERE id = $1`, id)
}

// FindRevisionRequestForUpdate locks the request row so counting remaining
// pending approvals and merging stays atomic across sibling approvers.
func (s *PostgresStore) FindRevisionRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error) {
	return s.findRevision(ctx, `
		SELECT id, form_id, authoring_company_siret, status, comment, content, created_at
		FROM revision_requests WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) findRevision(ctx context.Context, query string, id uuid.UUID) (*models.RevisionRequest, error) {
	var (
		r       models.RevisionRequest
		content []byte
	)
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.FormID, &r.AuthoringCompanySiret, &r.Status, &r.Comment, &content, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find revision request: %w", err)
	}
	if err := json.Unmarshal(content, &r.Content); err != nil {
		return nil, fmt.Errorf("unmarshal revision content: %w", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, revision_request_id, approver_siret, status, comment
		FROM revision_approvals WHERE revision_request_id = $1`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list revision approvals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.RevisionApproval
		if err := rows.Scan(&a.ID, &a.RevisionRequestID, &a.ApproverSiret, &a.Status, &a.Comment); err != nil {
			return nil, fmt.Errorf("scan revision approval: %w", err)
		}
		r.Approvals = append(r.Approvals, a)
	}
	return &r, rows.Err()
}

func (s *PostgresStore) CountPendingRevisionRequests(ctx context.Context, formID uuid.UUID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM revision_requests WHERE form_id = $1 AND status = $2`,
		formID, models.RevisionRequestPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending revision requests: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateRevisionRequestStatus(ctx context.Context, id uuid.UUID, status models.RevisionRequestStatus) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE revision_requests SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update revision request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update revision request status: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteRevisionRequest(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM revision_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete revision request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete revision request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	// revision_approvals has ON DELETE CASCADE.
	return nil
}

func (s *PostgresStore) FindApproval(ctx context.Context, id uuid.UUID) (*models.RevisionApproval, error) {
	var a models.RevisionApproval
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, revision_request_id, approver_siret, status, comment
		FROM revision_approvals WHERE id = $1`, id).Scan(
		&a.ID, &a.RevisionRequestID, &a.ApproverSiret, &a.Status, &a.Comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find revision approval: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateApprovalStatus(ctx context.Context, id uuid.UUID, status models.RevisionApprovalStatus, comment string) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE revision_approvals SET status = $2, comment = $3 WHERE id = $1`,
		id, status, comment)
	if err != nil {
		return fmt.Errorf("update revision approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update revision approval: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM revision_approvals
		WHERE revision_request_id = $1 AND status = $2`,
		revisionRequestID, models.RevisionApprovalPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CancelPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE revision_approvals SET status = $3
		WHERE revision_request_id = $1 AND status = $2`,
		revisionRequestID, models.RevisionApprovalPending, models.RevisionApprovalCanceled)
	if err != nil {
		return fmt.Errorf("cancel pending approvals: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
