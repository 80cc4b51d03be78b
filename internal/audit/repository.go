package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
	// maxPage keeps (Page-1)*PageSize well inside OFFSET's bigint range.
	maxPage = 10000
)

type Filter struct {
	Actor        string
	Action       domain.AuditAction
	ResourceType domain.AuditResource
	ResourceID   string
	Severity     domain.AuditSeverity
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

type ActionCount struct {
	Action domain.AuditAction `json:"action"`
	Count  int                `json:"count"`
}

type Stats struct {
	Since      time.Time                    `json:"since"`
	Total      int                          `json:"total"`
	BySeverity map[domain.AuditSeverity]int `json:"by_severity"`
	TopActions []ActionCount                `json:"top_actions"`
}

// AuditRepository only ever inserts and reads; entries are never updated or
// deleted.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if entry.Metadata == nil {
		metadata = []byte("{}")
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (action, severity, actor, resource_type, resource_id, ip_address, user_agent, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		RETURNING id
	`, entry.Action, entry.Severity, entry.Actor, entry.ResourceType, entry.ResourceID,
		entry.IPAddress, entry.UserAgent, metadata, entry.CreatedAt).Scan(&entry.ID)
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of entries, newest first, and the total match count.
func (r *AuditRepository) List(ctx context.Context, f Filter) ([]domain.AuditLogEntry, int, error) {
	f.normalize()
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query := fmt.Sprintf(`
		SELECT id, action, severity, COALESCE(actor, ''), COALESCE(resource_type, ''), COALESCE(resource_id, ''),
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), metadata, created_at
		FROM audit_logs
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.AuditLogEntry{}
	for rows.Next() {
		var e domain.AuditLogEntry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Severity, &e.Actor, &e.ResourceType, &e.ResourceID,
			&e.IPAddress, &e.UserAgent, &metadata, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode metadata for entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *AuditRepository) Stats(ctx context.Context, since time.Time, top int) (*Stats, error) {
	stats := &Stats{
		Since:      since,
		BySeverity: map[domain.AuditSeverity]int{},
		TopActions: []ActionCount{},
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT severity, COUNT(*)
		FROM audit_logs
		WHERE created_at >= $1
		GROUP BY severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var severity domain.AuditSeverity
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	actionRows, err := r.db.QueryContext(ctx, `
		SELECT action, COUNT(*) AS n
		FROM audit_logs
		WHERE created_at >= $1
		GROUP BY action
		ORDER BY n DESC, action
		LIMIT $2
	`, since, top)
	if err != nil {
		return nil, fmt.Errorf("top actions: %w", err)
	}
	defer func() { _ = actionRows.Close() }()

	for actionRows.Next() {
		var ac ActionCount
		if err := actionRows.Scan(&ac.Action, &ac.Count); err != nil {
			return nil, err
		}
		stats.TopActions = append(stats.TopActions, ac)
	}

	if err := actionRows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
