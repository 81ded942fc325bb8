// Package kb talks to the Bedrock knowledge base: it answers questions with
// RetrieveAndGenerate, resolves citations through the upload manifest, and
// starts ingestion jobs after new documents are uploaded.
package kb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
)

// RuntimeClient defines the knowledge base runtime operation the answerer needs.
type RuntimeClient interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// IngestionClient defines the ingestion job operations the syncer needs.
type IngestionClient interface {
	StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJob(ctx context.Context, params *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error)
}

// Ensure the SDK clients implement the interfaces.
var (
	_ RuntimeClient   = (*bedrockagentruntime.Client)(nil)
	_ IngestionClient = (*bedrockagent.Client)(nil)
)

// NewRuntimeClient creates a knowledge base runtime client.
func NewRuntimeClient(cfg aws.Config) *bedrockagentruntime.Client {
	return bedrockagentruntime.NewFromConfig(cfg)
}

// NewIngestionClient creates a knowledge base management client.
func NewIngestionClient(cfg aws.Config) *bedrockagent.Client {
	return bedrockagent.NewFromConfig(cfg)
}
