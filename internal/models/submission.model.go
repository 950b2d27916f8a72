package models

// SubmissionKind separates the two upload paths a trip can take. The same
// trip may legitimately be submitted once per kind.
type SubmissionKind string

const (
	SubmissionKindExpenseItem SubmissionKind = "expense_item"
	SubmissionKindTimeEntry   SubmissionKind = "time_entry"
)

// SubmissionRecord is the durable record of one uploaded trip fingerprint.
// The unique index is the duplicate-upload guard.
type SubmissionRecord struct {
	BaseUUIDModel
	Fingerprint string         `gorm:"type:varchar(256);not null;uniqueIndex:idx_submission_kind_fp" json:"fingerprint"`
	Kind        SubmissionKind `gorm:"type:varchar(32);not null;uniqueIndex:idx_submission_kind_fp"  json:"kind"`
	ResourceID  int            `gorm:"type:int;not null;index"                                       json:"resourceID"`
}
