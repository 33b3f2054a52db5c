package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsjns/bearlink-sub000/internal/models"
)

type fakePublisher struct {
	published map[string][][]byte
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: map[string][][]byte{}}
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func TestEmitStripsPasswordHash(t *testing.T) {
	pub := newFakePublisher()
	emitter := NewEmitter(pub)

	emitter.LinkCreated(context.Background(), models.Link{
		ShortID:      "abc123XYZ0",
		OriginalURL:  "https://example.com",
		PasswordHash: "$2a$10$secret",
	})

	require.Len(t, pub.published[TopicCreated], 1)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.published[TopicCreated][0], &payload))
	assert.Equal(t, "abc123XYZ0", payload["shortId"])
	assert.NotContains(t, string(pub.published[TopicCreated][0]), "secret")
}

func TestEmitClick(t *testing.T) {
	pub := newFakePublisher()
	emitter := NewEmitter(pub)

	emitter.LinkClicked(context.Background(), ClickEvent{ShortID: "abc", IP: "1.2.3.4"})

	require.Len(t, pub.published[TopicClicked], 1)

	var ev ClickEvent
	require.NoError(t, json.Unmarshal(pub.published[TopicClicked][0], &ev))
	assert.Equal(t, "abc", ev.ShortID)
	assert.NotZero(t, ev.Timestamp)
}

func TestEmitFailuresAreSwallowed(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	emitter := NewEmitter(pub)

	assert.NotPanics(t, func() {
		emitter.LinkDeleted(context.Background(), models.Link{ShortID: "abc"})
	})
}

func TestNilEmitter(t *testing.T) {
	var emitter *Emitter
	assert.NotPanics(t, func() {
		emitter.LinkCreated(context.Background(), models.Link{})
		emitter.LinkClicked(context.Background(), ClickEvent{})
	})
	assert.Nil(t, NewEmitter(nil))
}
