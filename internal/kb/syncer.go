package kb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"trustmed/internal/logger"
	"trustmed/pkg/utils"
)

const (
	opStartIngestion = "start_ingestion_job"
	opGetIngestion   = "get_ingestion_job"
)

// Job is a snapshot of an ingestion job.
type Job struct {
	ID             string
	Status         types.IngestionJobStatus
	Scanned        int64
	NewIndexed     int64
	Modified       int64
	Deleted        int64
	Failed         int64
	FailureReasons []string
}

// Terminal reports whether the job has stopped changing.
func (j *Job) Terminal() bool {
	switch j.Status {
	case types.IngestionJobStatusComplete, types.IngestionJobStatusFailed, types.IngestionJobStatusStopped:
		return true
	default:
		return false
	}
}

func (j *Job) String() string {
	s := fmt.Sprintf("Job %s: %s | Scanned: %d | New: %d | Modified: %d | Deleted: %d | Failed: %d",
		j.ID, j.Status, j.Scanned, j.NewIndexed, j.Modified, j.Deleted, j.Failed)

	if len(j.FailureReasons) > 0 {
		s += " | Reasons: " + strings.Join(j.FailureReasons, "; ")
	}

	return s
}

func jobFromSDK(in *types.IngestionJob) *Job {
	if in == nil {
		return &Job{}
	}

	job := &Job{
		ID:             aws.ToString(in.IngestionJobId),
		Status:         in.Status,
		FailureReasons: in.FailureReasons,
	}

	if st := in.Statistics; st != nil {
		job.Scanned = st.NumberOfDocumentsScanned
		job.NewIndexed = st.NumberOfNewDocumentsIndexed
		job.Modified = st.NumberOfModifiedDocumentsIndexed
		job.Deleted = st.NumberOfDocumentsDeleted
		job.Failed = st.NumberOfDocumentsFailed
	}

	return job
}

// Syncer starts and follows knowledge base ingestion jobs.
type Syncer struct {
	client          IngestionClient
	knowledgeBaseID string
	dataSourceID    string
	logger          *logger.Logger
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewSyncer creates a syncer for one knowledge base data source.
func NewSyncer(client IngestionClient, knowledgeBaseID, dataSourceID string, log *logger.Logger) *Syncer {
	return &Syncer{
		client:          client,
		knowledgeBaseID: knowledgeBaseID,
		dataSourceID:    dataSourceID,
		logger:          log,
		sleep:           utils.SleepContext,
	}
}

// Start kicks off an ingestion job and returns its first snapshot.
func (s *Syncer) Start(ctx context.Context) (*Job, error) {
	var missing []string
	if s.knowledgeBaseID == "" {
		missing = append(missing, "BEDROCK_KB_ID")
	}
	if s.dataSourceID == "" {
		missing = append(missing, "BEDROCK_DATA_SOURCE_ID")
	}
	if len(missing) > 0 {
		return nil, &MissingConfigError{Names: missing}
	}

	out, err := s.client.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(s.knowledgeBaseID),
		DataSourceId:    aws.String(s.dataSourceID),
	})
	if err != nil {
		return nil, classify(opStartIngestion, err)
	}

	job := jobFromSDK(out.IngestionJob)
	s.logger.Info("Started ingestion job", "job", job.ID, "status", string(job.Status))

	return job, nil
}

// Get fetches the current state of a job.
func (s *Syncer) Get(ctx context.Context, jobID string) (*Job, error) {
	out, err := s.client.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
		KnowledgeBaseId: aws.String(s.knowledgeBaseID),
		DataSourceId:    aws.String(s.dataSourceID),
		IngestionJobId:  aws.String(jobID),
	})
	if err != nil {
		return nil, classify(opGetIngestion, err)
	}

	return jobFromSDK(out.IngestionJob), nil
}

// Wait polls the job every poll interval until it reaches a terminal state.
// A job that ends in any state other than COMPLETE is reported as ErrJobFailed.
func (s *Syncer) Wait(ctx context.Context, jobID string, poll time.Duration) (*Job, error) {
	if poll <= 0 {
		poll = 15 * time.Second
	}

	for {
		job, err := s.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}

		s.logger.Info("Ingestion job status", "job", jobID, "status", string(job.Status))

		if job.Terminal() {
			if job.Status != types.IngestionJobStatusComplete {
				return job, fmt.Errorf("%w: %s", ErrJobFailed, job)
			}

			return job, nil
		}

		if err := s.sleep(ctx, poll); err != nil {
			return job, err
		}
	}
}
