package domain

// RejectReason says why a refresh token was refused. It is for logs and
// metrics only; clients always see the same generic failure.
type RejectReason string

const (
	// RejectUnknown: no record matches the presented value.
	RejectUnknown RejectReason = "unknown"
	// RejectExpired: ordinary session timeout. Never a breach.
	RejectExpired RejectReason = "expired"
	// RejectBreach: the value was already consumed; the family is revoked.
	RejectBreach RejectReason = "breach"
	// RejectRevoked: logout, logout-all or a prior breach already closed it.
	RejectRevoked RejectReason = "revoked"
)

func (r RejectReason) String() string { return string(r) }
