package domain

// JobStatus represents the state of a report job on the remote service
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "SUBMITTED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusSuccess    JobStatus = "SUCCESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

// ReportTypeFindings is the report kind requested for every interval
const ReportTypeFindings = "FINDINGS"

// IsPending reports whether the job is still being built remotely
func (s JobStatus) IsPending() bool {
	return s == JobStatusSubmitted || s == JobStatusProcessing
}

// IsSucceeded reports whether the job finished and its findings can be read
func (s JobStatus) IsSucceeded() bool {
	return s == JobStatusSuccess || s == JobStatusCompleted
}

// Record is one finding as returned by the service. Field names are owned by
// the service and passed through untouched.
type Record = map[string]interface{}

// ReportJob represents one submitted report request for a single interval
type ReportJob struct {
	ID       string
	Interval Interval
	Status   JobStatus
	Polls    int
	Records  []Record
}

// Summary drops the records and keeps what is worth reporting about the job
func (j *ReportJob) Summary() JobSummary {
	return JobSummary{
		Interval:    j.Interval,
		ReportID:    j.ID,
		Status:      j.Status,
		Polls:       j.Polls,
		RecordCount: len(j.Records),
	}
}

// JobSummary describes a finished report job without its records
type JobSummary struct {
	Interval    Interval
	ReportID    string
	Status      JobStatus
	Polls       int
	RecordCount int
}

// AggregateResult holds the records of every interval, concatenated in
// interval order. Records are neither filtered nor deduplicated.
type AggregateResult struct {
	Range   TimeRange
	Records []Record
	Jobs    []JobSummary
}

// Empty reports the "no findings" outcome, which is not an error
func (r *AggregateResult) Empty() bool {
	return len(r.Records) == 0
}
