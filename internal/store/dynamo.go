package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type dynamoPutAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// CallItem is the DynamoDB record for one archived call. Calls of a run share
// a partition; GSI1 groups calls by persona.
type CallItem struct {
	PK            string   `dynamodbav:"PK"`
	SK            string   `dynamodbav:"SK"`
	GSI1PK        string   `dynamodbav:"GSI1PK"`
	GSI1SK        string   `dynamodbav:"GSI1SK"`
	CallID        string   `dynamodbav:"callId"`
	RunID         string   `dynamodbav:"runId"`
	Iteration     int      `dynamodbav:"iteration"`
	PersonaID     string   `dynamodbav:"personaId"`
	PersonaName   string   `dynamodbav:"personaName"`
	ScriptVersion int      `dynamodbav:"scriptVersion"`
	Turns         int      `dynamodbav:"turns"`
	EndReason     string   `dynamodbav:"endReason"`
	Sentiment     string   `dynamodbav:"sentiment"`
	Interest      string   `dynamodbav:"interest"`
	Outcome       string   `dynamodbav:"outcome"`
	Effectiveness float64  `dynamodbav:"effectiveness"`
	Objections    []string `dynamodbav:"objections,omitempty"`
	Source        string   `dynamodbav:"source"`
	Transcript    string   `dynamodbav:"transcript"` // JSON
	Recording     string   `dynamodbav:"recording,omitempty"`
	StartedAt     string   `dynamodbav:"startedAt"`
	EndedAt       string   `dynamodbav:"endedAt"`
}

// DynamoArchive copies finished calls to a DynamoDB table so runs from many
// machines can be compared. SQLite stays the local source of truth.
type DynamoArchive struct {
	client    dynamoPutAPI
	tableName string
}

func NewDynamoArchive(ctx context.Context, table, region string) (*DynamoArchive, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &DynamoArchive{client: dynamodb.NewFromConfig(cfg), tableName: table}, nil
}

// ArchiveCall writes rec. Re-archiving the same call overwrites it.
func (a *DynamoArchive) ArchiveCall(ctx context.Context, rec CallRecord) error {
	item, err := callItem(rec)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal call item: %w", err)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put call item: %w", err)
	}
	return nil
}

func callItem(rec CallRecord) (CallItem, error) {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return CallItem{}, fmt.Errorf("marshal transcript: %w", err)
	}
	started := rec.StartedAt.UTC().Format(time.RFC3339)
	return CallItem{
		PK:            "RUN#" + rec.RunID,
		SK:            fmt.Sprintf("CALL#%04d#%s", rec.Iteration, rec.CallID),
		GSI1PK:        "PERSONA#" + rec.PersonaID,
		GSI1SK:        started + "#" + rec.CallID,
		CallID:        rec.CallID,
		RunID:         rec.RunID,
		Iteration:     rec.Iteration,
		PersonaID:     rec.PersonaID,
		PersonaName:   rec.PersonaName,
		ScriptVersion: rec.ScriptVersion,
		Turns:         len(rec.Transcript.Turns),
		EndReason:     string(rec.Transcript.EndReason),
		Sentiment:     string(rec.Analysis.Sentiment),
		Interest:      string(rec.Analysis.Interest),
		Outcome:       string(rec.Analysis.Outcome),
		Effectiveness: rec.Analysis.Effectiveness,
		Objections:    rec.Analysis.Objections,
		Source:        string(rec.Analysis.Source),
		Transcript:    string(transcript),
		Recording:     rec.Recording,
		StartedAt:     started,
		EndedAt:       rec.EndedAt.UTC().Format(time.RFC3339),
	}, nil
}
