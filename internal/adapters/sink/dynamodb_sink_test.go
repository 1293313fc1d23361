package sink

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakePutItem struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (f *fakePutItem) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDBSinkPutsItemWithTTL(t *testing.T) {
	client := &fakePutItem{}
	sink, err := NewDynamoDBSink(client, "knee-snapshots", 0)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	if err := sink.WriteSnapshot(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected one PutItem call, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.TableName) != "knee-snapshots" {
		t.Fatalf("unexpected table %q", aws.ToString(in.TableName))
	}
	pk, ok := in.Item["patient_id"].(*types.AttributeValueMemberS)
	if !ok || pk.Value != "patient-1" {
		t.Fatalf("expected patient_id partition key, got %#v", in.Item["patient_id"])
	}
	ttl, ok := in.Item["expires_at"].(*types.AttributeValueMemberN)
	want := now.Add(30 * 24 * time.Hour).Unix()
	if !ok || ttl.Value != strconv.FormatInt(want, 10) {
		t.Fatalf("expected expires_at %d, got %#v", want, in.Item["expires_at"])
	}
	if aws.ToString(in.ConditionExpression) == "" {
		t.Fatalf("expected a conditional put")
	}
}

func TestDynamoDBSinkTreatsDuplicateAsWritten(t *testing.T) {
	client := &fakePutItem{err: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	sink, _ := NewDynamoDBSink(client, "knee-snapshots", time.Hour)
	if err := sink.WriteSnapshot(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("duplicate put should be ignored, got %v", err)
	}
}

func TestDynamoDBSinkPropagatesError(t *testing.T) {
	client := &fakePutItem{err: errors.New("throttled")}
	sink, _ := NewDynamoDBSink(client, "knee-snapshots", time.Hour)
	if err := sink.WriteSnapshot(context.Background(), testSnapshot()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDynamoDBSinkRequiresTable(t *testing.T) {
	if _, err := NewDynamoDBSink(&fakePutItem{}, "", 0); err == nil {
		t.Fatalf("expected missing table to be rejected")
	}
}
