package queue

const (
	TypeExtractPDF = "extract:pdf"
)

// ExtractPayload carries the PDF inline; jobs are small enough that the
// queue is the only storage they need.
type ExtractPayload struct {
	JobID   string `json:"job_id"`
	DataURI string `json:"data_uri"`
}
