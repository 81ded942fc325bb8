package kb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
)

// MockRuntimeClient implements RuntimeClient for testing.
type MockRuntimeClient struct {
	RetrieveAndGenerateFunc func(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
	calls                   int
}

func (m *MockRuntimeClient) RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	m.calls++

	if m.RetrieveAndGenerateFunc != nil {
		return m.RetrieveAndGenerateFunc(ctx, params)
	}

	return &bedrockagentruntime.RetrieveAndGenerateOutput{}, nil
}

// MockIngestionClient implements IngestionClient for testing.
type MockIngestionClient struct {
	StartIngestionJobFunc func(ctx context.Context, params *bedrockagent.StartIngestionJobInput) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJobFunc   func(ctx context.Context, params *bedrockagent.GetIngestionJobInput) (*bedrockagent.GetIngestionJobOutput, error)
}

func (m *MockIngestionClient) StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	if m.StartIngestionJobFunc != nil {
		return m.StartIngestionJobFunc(ctx, params)
	}

	return &bedrockagent.StartIngestionJobOutput{}, nil
}

func (m *MockIngestionClient) GetIngestionJob(ctx context.Context, params *bedrockagent.GetIngestionJobInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error) {
	if m.GetIngestionJobFunc != nil {
		return m.GetIngestionJobFunc(ctx, params)
	}

	return &bedrockagent.GetIngestionJobOutput{}, nil
}
