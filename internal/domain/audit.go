package domain

import "time"

type AuditAction string

const (
	AuditAuthLoginSucceeded    AuditAction = "auth.login_succeeded"
	AuditAuthLoginFailed       AuditAction = "auth.login_failed"
	AuditAuthLogout            AuditAction = "auth.logout"
	AuditAuthAdminAccessDenied AuditAction = "auth.admin_access_denied"
	AuditOrderPaymentConfirmed AuditAction = "order.payment_confirmed"
	AuditOrderStatusUpdated    AuditAction = "order.status_updated"
	AuditOrderDeleted          AuditAction = "order.deleted"
	AuditProductCreated        AuditAction = "product.created"
	AuditProductUpdated        AuditAction = "product.updated"
	AuditProductDeleted        AuditAction = "product.deleted"
	AuditProductStockUpdated   AuditAction = "product.stock_updated"
	AuditCollectionCreated     AuditAction = "collection.created"
	AuditCollectionUpdated     AuditAction = "collection.updated"
	AuditCollectionDeleted     AuditAction = "collection.deleted"
	AuditUserCreated           AuditAction = "user.created"
	AuditUserUpdated           AuditAction = "user.updated"
	AuditUserDeleted           AuditAction = "user.deleted"
	AuditContentUpdated        AuditAction = "content.updated"
	AuditSecurityRateLimited   AuditAction = "security.rate_limit_exceeded"
	AuditSecuritySuspicious    AuditAction = "security.suspicious_activity"
)

var auditActions = map[AuditAction]struct{}{
	AuditAuthLoginSucceeded:    {},
	AuditAuthLoginFailed:       {},
	AuditAuthLogout:            {},
	AuditAuthAdminAccessDenied: {},
	AuditOrderPaymentConfirmed: {},
	AuditOrderStatusUpdated:    {},
	AuditOrderDeleted:          {},
	AuditProductCreated:        {},
	AuditProductUpdated:        {},
	AuditProductDeleted:        {},
	AuditProductStockUpdated:   {},
	AuditCollectionCreated:     {},
	AuditCollectionUpdated:     {},
	AuditCollectionDeleted:     {},
	AuditUserCreated:           {},
	AuditUserUpdated:           {},
	AuditUserDeleted:           {},
	AuditContentUpdated:        {},
	AuditSecurityRateLimited:   {},
	AuditSecuritySuspicious:    {},
}

func (a AuditAction) Valid() bool {
	_, ok := auditActions[a]
	return ok
}

type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

func (s AuditSeverity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

type AuditResource string

const (
	ResourceOrder      AuditResource = "order"
	ResourceProduct    AuditResource = "product"
	ResourceCollection AuditResource = "collection"
	ResourceUser       AuditResource = "user"
	ResourceContent    AuditResource = "content"
	ResourceEndpoint   AuditResource = "endpoint"
)

// AuditLogEntry is append-only.
type AuditLogEntry struct {
	ID           int64          `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	Actor        string         `json:"actor,omitempty"`
	ResourceType AuditResource  `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
