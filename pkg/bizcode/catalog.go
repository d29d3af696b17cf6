package bizcode

// Namespaces of the released codes.
const (
	NamespaceConn = "conn"
	NamespaceDB   = "db"
	NamespaceAuth = "auth"
	NamespaceReq  = "req"
)

// Released codes. Append only; never rename or reuse an entry.
var (
	ConnInitFailed    = Register(NamespaceConn, "init_failed", "database connection could not be initialized")
	ConnNotConfigured = Register(NamespaceConn, "not_configured", "database access is not enabled in this build")

	DBDuplicateKey             = Register(NamespaceDB, "duplicate_key", "record already exists")
	DBDeleteViolatesConstraint = Register(NamespaceDB, "delete_violates_constraint", "delete failed, other records depend on this one")
	DBRecordNotUpdated         = Register(NamespaceDB, "record_not_updated", "no record was updated, check that it exists")
	DBNotFound                 = Register(NamespaceDB, "not_found", "record not found")

	AuthUnauthorized   = Register(NamespaceAuth, "unauthorized", "authentication required")
	AuthForbidden      = Register(NamespaceAuth, "forbidden", "operation not permitted")
	AuthSessionExpired = Register(NamespaceAuth, "session_expired", "session expired")

	ReqInvalidPayload = Register(NamespaceReq, "invalid_payload", "request payload is invalid")
	ReqMissingParam   = Register(NamespaceReq, "missing_param", "required parameter is missing")
	ReqRateLimited    = Register(NamespaceReq, "rate_limited", "too many requests, slow down")
)
