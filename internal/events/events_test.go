package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	e := Event{Entity: EntityRequest, Name: RequestStarted}
	assert.Equal(t, "maintenance/request/started", Topic("maintenance", e))
	assert.Equal(t, "plant/a/request/started", Topic("/plant/a/", e))
	assert.Equal(t, "request/started", Topic("", e))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), Event{Entity: EntityEquipment, Name: EquipmentScrapped, ID: "e1"})
	r.Publish(context.Background(), Event{Entity: EntityRequest, Name: RequestCancelled, ID: "r1"})

	assert.Equal(t, []string{"equipment/scrapped", "request/cancelled"}, r.Names())
	require.Len(t, r.Events(), 2)
	assert.Equal(t, "e1", r.Events()[0].ID)
}

func TestNewMQTTPublisher_RequiresBroker(t *testing.T) {
	_, err := NewMQTTPublisher(MQTTConfig{})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(context.Background(), Event{})
	p.Close()
}
