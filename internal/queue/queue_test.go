package queue

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, BroadcastQueue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection cannot be nil")

	_, err = NewPublisher(&Connection{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name cannot be empty")
}

func TestNewConsumer_Validation(t *testing.T) {
	handler := func(job *BroadcastJob) error { return nil }

	_, err := NewConsumer(nil, BroadcastQueue, handler, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection cannot be nil")

	_, err = NewConsumer(&Connection{}, "", handler, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name cannot be empty")

	_, err = NewConsumer(&Connection{}, BroadcastQueue, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")
}

func TestPublishBroadcast_ValidatesJob(t *testing.T) {
	p := &Publisher{queueName: BroadcastQueue}

	err := p.PublishBroadcast(BroadcastJob{StudentIDs: []int{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcast ID cannot be empty")

	err = p.PublishBroadcast(BroadcastJob{BroadcastID: "b-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one student")
}

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob([]byte(`{"broadcast_id":"b-1","template":"Hi {name}","student_ids":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "b-1", job.BroadcastID)
	assert.Equal(t, []int{1, 2}, job.StudentIDs)
}

func TestDecodeJob_MalformedPayload(t *testing.T) {
	// An undecodable payload is a permanent failure: the consumer drops
	// it instead of requeueing it forever.
	_, err := decodeJob([]byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal broadcast job")
}

func TestBroadcastJob_JSONShape(t *testing.T) {
	job := BroadcastJob{
		BroadcastID:    "b-1",
		Template:       "Hello {name}",
		StudentIDs:     []int{1, 2, 3},
		AttachReceipts: true,
	}

	body, err := json.Marshal(job)
	require.NoError(t, err)

	// The wire shape is a contract between API and worker.
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "b-1", decoded["broadcast_id"])
	assert.Equal(t, "Hello {name}", decoded["template"])
	assert.Equal(t, true, decoded["attach_receipts"])
	assert.Len(t, decoded["student_ids"], 3)
}
