package kb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustmed/internal/logger"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestSyncer_StartAndWait(t *testing.T) {
	statuses := []types.IngestionJobStatus{
		types.IngestionJobStatusStarting,
		types.IngestionJobStatusInProgress,
		types.IngestionJobStatusComplete,
	}
	polls := 0

	client := &MockIngestionClient{
		StartIngestionJobFunc: func(_ context.Context, params *bedrockagent.StartIngestionJobInput) (*bedrockagent.StartIngestionJobOutput, error) {
			assert.Equal(t, "KB123", aws.ToString(params.KnowledgeBaseId))
			assert.Equal(t, "DS1", aws.ToString(params.DataSourceId))

			return &bedrockagent.StartIngestionJobOutput{IngestionJob: &types.IngestionJob{
				IngestionJobId: aws.String("job-1"),
				Status:         types.IngestionJobStatusStarting,
			}}, nil
		},
		GetIngestionJobFunc: func(_ context.Context, params *bedrockagent.GetIngestionJobInput) (*bedrockagent.GetIngestionJobOutput, error) {
			assert.Equal(t, "job-1", aws.ToString(params.IngestionJobId))

			status := statuses[polls]
			polls++

			return &bedrockagent.GetIngestionJobOutput{IngestionJob: &types.IngestionJob{
				IngestionJobId: aws.String("job-1"),
				Status:         status,
				Statistics: &types.IngestionJobStatistics{
					NumberOfDocumentsScanned:         10,
					NumberOfNewDocumentsIndexed:      7,
					NumberOfModifiedDocumentsIndexed: 2,
					NumberOfDocumentsDeleted:         1,
				},
			}}, nil
		},
	}

	s := NewSyncer(client, "KB123", "DS1", logger.NewNop())
	s.sleep = noSleep

	job, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.False(t, job.Terminal())

	done, err := s.Wait(context.Background(), job.ID, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, polls)
	assert.Equal(t, types.IngestionJobStatusComplete, done.Status)
	assert.Equal(t, int64(10), done.Scanned)
	assert.Equal(t, int64(7), done.NewIndexed)
	assert.Equal(t, int64(2), done.Modified)
	assert.Equal(t, int64(1), done.Deleted)
	assert.Zero(t, done.Failed)
	assert.Contains(t, done.String(), "Scanned: 10 | New: 7 | Modified: 2 | Deleted: 1 | Failed: 0")
}

func TestSyncer_WaitFailed(t *testing.T) {
	client := &MockIngestionClient{
		GetIngestionJobFunc: func(context.Context, *bedrockagent.GetIngestionJobInput) (*bedrockagent.GetIngestionJobOutput, error) {
			return &bedrockagent.GetIngestionJobOutput{IngestionJob: &types.IngestionJob{
				IngestionJobId: aws.String("job-2"),
				Status:         types.IngestionJobStatusFailed,
				FailureReasons: []string{"access denied"},
			}}, nil
		},
	}

	s := NewSyncer(client, "KB123", "DS1", logger.NewNop())
	s.sleep = noSleep

	job, err := s.Wait(context.Background(), "job-2", 0)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "access denied")
	assert.True(t, job.Terminal())
}

func TestSyncer_WaitCancelled(t *testing.T) {
	client := &MockIngestionClient{
		GetIngestionJobFunc: func(context.Context, *bedrockagent.GetIngestionJobInput) (*bedrockagent.GetIngestionJobOutput, error) {
			return &bedrockagent.GetIngestionJobOutput{IngestionJob: &types.IngestionJob{
				Status: types.IngestionJobStatusInProgress,
			}}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyncer(client, "KB123", "DS1", logger.NewNop()).Wait(ctx, "job-3", time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSyncer_MissingConfig(t *testing.T) {
	_, err := NewSyncer(&MockIngestionClient{}, "", "", logger.NewNop()).Start(context.Background())

	var missing *MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"BEDROCK_KB_ID", "BEDROCK_DATA_SOURCE_ID"}, missing.Names)
}
