package models

import "time"

// FileStatus is the lifecycle state of a case file.
type FileStatus string

const (
	FileStatusActive  FileStatus = "active"
	FileStatusDormant FileStatus = "dormant"
	FileStatusClosed  FileStatus = "closed"
)

func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusActive, FileStatusDormant, FileStatusClosed:
		return true
	}
	return false
}

// File is a physical case file tracked by the custody ledger. The id is of
// the form CT-<year>-<4-digit-seq>. CurrentCustodian is derived state: it
// always equals the to_custodian of the file's most recent movement and is
// only ever mutated by the ledger's transfer operation inside the same
// transaction that appends the movement.
type File struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	ClientName        string     `json:"client_name"`
	Status            FileStatus `json:"status"`
	CurrentCustodian  string     `json:"current_custodian"`
	AssignedAdvocates []string   `json:"assigned_advocates"`
	DateOpened        time.Time  `json:"date_opened"`
	DateClosed        *time.Time `json:"date_closed,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// FirstAssignedAdvocate returns the target for file-scoped alerts, or ""
// when the file has no assigned advocates (the alert is then broadcast).
func (f *File) FirstAssignedAdvocate() string {
	if len(f.AssignedAdvocates) == 0 {
		return ""
	}
	return f.AssignedAdvocates[0]
}

// HasAssignedAdvocate reports whether userID is one of the file's assigned
// advocates.
func (f *File) HasAssignedAdvocate(userID string) bool {
	for _, id := range f.AssignedAdvocates {
		if id == userID {
			return true
		}
	}
	return false
}

// RegisterFileRequest is the payload for registering a new case file.
type RegisterFileRequest struct {
	Title             string   `json:"title" validate:"required"`
	ClientName        string   `json:"client_name" validate:"required"`
	CustodianID       string   `json:"custodian_id" validate:"required"`
	AssignedAdvocates []string `json:"assigned_advocates"`
}

// FileResponse wraps a single file.
type FileResponse struct {
	File File `json:"file"`
}

// FileListResponse is a paginated file listing.
type FileListResponse struct {
	Items      []File `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}
