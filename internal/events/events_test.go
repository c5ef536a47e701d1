package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recordingPublisher struct {
	got []CheckinEvent
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, evt CheckinEvent) error {
	r.got = append(r.got, evt)
	return r.err
}

func TestKafkaPublisherKeysByBooking(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "booking.checkins")

	student := "S1"
	evt := CheckinEvent{
		BookingID:   "B1",
		AcademyID:   "F1",
		TeacherID:   "T1",
		StudentID:   &student,
		Method:      "QRCODE",
		ActorUserID: "S1",
		RequestID:   "req-1",
		OccurredAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "B1", string(msg.Key))
	assert.Len(t, msg.Headers, 2)

	var decoded CheckinEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeCheckinCompleted, decoded.Type)
	assert.Equal(t, "F1", decoded.AcademyID)
}

func TestKafkaPublisherErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, "t")

	err := p.Publish(context.Background(), CheckinEvent{})
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = p.Publish(context.Background(), CheckinEvent{BookingID: "B1"})
	assert.ErrorContains(t, err, "broker down")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), CheckinEvent{BookingID: "B1"}), ErrPublisherClosed)
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "t", nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", nil)
	assert.Error(t, err)
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("boom")}
	f := Fanout{ok, nil, bad, Nop{}}

	err := f.Publish(context.Background(), CheckinEvent{BookingID: "B1"})
	assert.ErrorContains(t, err, "boom")
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)
}
