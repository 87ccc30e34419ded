package dynamo

// Attribute names used in keys, conditions and update expressions.
const (
	fieldUserID    = "user_id"
	fieldEmail     = "email"
	fieldSessionID = "session_id"
	fieldFileID    = "file_id"
	fieldOwnerID   = "owner_id"
	fieldEnable    = "enable"
	fieldAttempts  = "attempts"
	fieldCodeHash  = "code_hash"
	fieldUpdatedAt = "updated_at"
	fieldExpiresAt = "expires_at"
)

// Global secondary index names.
const (
	indexEmail   = "email-index"
	indexOwnerID = "owner_id-index"
)
