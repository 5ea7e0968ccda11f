package archive

import "time"

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	SnapshotKey       string    `json:"snapshot_key"`
	S3Key             string    `json:"s3_key"`
	RuleVersion       string    `json:"rule_version"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	GeneratedAt       time.Time `json:"generated_at"`
	TotalPatients     int       `json:"total_patients"`
	TotalAppointments int       `json:"total_appointments"`
}
