package enums

// AuditAction labels the state change recorded by an audit entry.
type AuditAction string

const (
	AuditActionCreate    AuditAction = "create"
	AuditActionUpdate    AuditAction = "update"
	AuditActionDelete    AuditAction = "delete"
	AuditActionApprove   AuditAction = "approve"
	AuditActionReject    AuditAction = "reject"
	AuditActionTerminate AuditAction = "terminate"
	AuditActionRenew     AuditAction = "renew"
	AuditActionPayment   AuditAction = "payment"
	AuditActionRefund    AuditAction = "refund"
)

var validAuditActions = []AuditAction{
	AuditActionCreate,
	AuditActionUpdate,
	AuditActionDelete,
	AuditActionApprove,
	AuditActionReject,
	AuditActionTerminate,
	AuditActionRenew,
	AuditActionPayment,
	AuditActionRefund,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}
