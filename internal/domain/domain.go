// Package domain holds the plain entity types persisted by the repository
// layer and passed between the pipeline, dispatcher and API facade.
package domain

import "time"

// ScanStatus is the lifecycle state of a ScanJob.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// SubdomainStatus is the liveness state of a discovered Subdomain.
type SubdomainStatus string

const (
	SubdomainStatusFound SubdomainStatus = "found"
	SubdomainStatusLive  SubdomainStatus = "live"
	SubdomainStatusDead  SubdomainStatus = "dead"
)

// Severity classifies a LeakDetection.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ScanJob identifies one reconnaissance run against an apex domain.
//
// Status transitions only pending -> running -> {completed, failed};
// CompletedAt is set iff Status is completed or failed.
type ScanJob struct {
	ID          string
	TaskID      string
	Domain      string
	Status      ScanStatus
	ErrorMsg    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Subdomain is one discovered hostname within a job. URL is the exact URL
// the prober reported for it (before any redirect), the identity every
// downstream consumer filters against; FinalURL is where redirects landed.
type Subdomain struct {
	ID               int64
	JobID            string
	Name             string
	Source           string
	Status           SubdomainStatus
	IsLive           bool
	URL              string
	HTTPStatus       *int
	Title            string
	ContentLength    *int64
	Webserver        string
	FinalURL         string
	ResponseTime     string
	CDNName          string
	ContentType      string
	Host             string
	ChainStatusCodes []int
	IPv4Addresses    []string
	IPv6Addresses    []string
}

// Technology is a (subdomain, name) fingerprint fact, unique per subdomain.
type Technology struct {
	ID          int64
	SubdomainID int64
	Name        string
}

// Screenshot records a captured image for a URL. The file on disk is the
// source of truth; this is a pointer to it.
type Screenshot struct {
	ID          int64
	JobID       string
	SubdomainID *int64
	URL         string
	Filename    string
	FilePath    string
	FileSize    *int64
}

// WafDetection is the WAF-fingerprint result for one probed URL.
type WafDetection struct {
	ID           int64
	JobID        string
	URL          string
	Detected     bool
	Firewall     string
	Manufacturer string
}

// HasWAF reports whether this detection should count as WAF-protected, per
// the "detected and firewall != None" rule.
func (w WafDetection) HasWAF() bool {
	return w.Detected && w.Firewall != "None"
}

// LeakDetection is one file found by path brute-forcing a live host.
//
// Status code 404 is never persisted as a leak.
type LeakDetection struct {
	ID         int64
	JobID      string
	BaseURL    string
	LeakURL    string
	FileType   string
	Severity   Severity
	FileSize   int64
	HTTPStatus int
}

// TaskState is the observable lifecycle of a dispatched Task.
type TaskState string

const (
	TaskStatePending  TaskState = "PENDING"
	TaskStateStarted  TaskState = "STARTED"
	TaskStateProgress TaskState = "PROGRESS"
	TaskStateRetry    TaskState = "RETRY"
	TaskStateSuccess  TaskState = "SUCCESS"
	TaskStateFailure  TaskState = "FAILURE"
	TaskStateRevoked  TaskState = "REVOKED"
)

// TaskRecord describes one dispatched task, independent of the ScanJob it
// acts on. It is not persisted: there is no task table, and the brokers
// queue dispatch.Task values instead.
type TaskRecord struct {
	ID          string
	Kind        string
	Queue       string
	Priority    int
	Payload     []byte
	State       TaskState
	Attempt     int
	MaxAttempts int
	AvailableAt time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Progress is a single heartbeat published by a running task.
type Progress struct {
	Current int
	Total   int
	Status  string
	JobID   string
	Extra   map[string]any
}
