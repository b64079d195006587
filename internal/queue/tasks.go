package queue

const (
	TypePodcastGenerate = "podcast:generate"
)

// PodcastGeneratePayload is the task payload handed from the submission
// path to the worker. InputPath is the job-scoped temp copy of the
// uploaded document; the worker owns its removal.
type PodcastGeneratePayload struct {
	JobID            string `json:"job_id"`
	InputPath        string `json:"input_path"`
	OriginalFilename string `json:"original_filename"`
}
