package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFor_Exponential(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffFor(1))
	assert.Equal(t, 4*time.Second, backoffFor(2))
	assert.Equal(t, 8*time.Second, backoffFor(3))
}

func TestDecodeTask_MissingPayload(t *testing.T) {
	_, err := decodeTask(map[string]interface{}{})
	assert.Error(t, err)
}

func TestDecodeTask_RoundTrip(t *testing.T) {
	task := Task{ID: "abc", Attempt: 1}
	payload, err := json.Marshal(task)
	assert.NoError(t, err)

	decoded, err := decodeTask(map[string]interface{}{"payload": string(payload)})
	assert.NoError(t, err)
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, task.Attempt, decoded.Attempt)
}
