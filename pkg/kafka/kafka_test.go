package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

func TestEncodeEvents(t *testing.T) {
	msgs, err := encodeEvents([]Event{
		{Key: "q1", Value: map[string]int{"total_hits": 2}},
		{Key: "q2", Value: []string{"cat"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "q1", string(msgs[0].Key))
	assert.JSONEq(t, `{"total_hits":2}`, string(msgs[0].Value))
	assert.JSONEq(t, `["cat"]`, string(msgs[1].Value))
}

func TestEncodeEventsRejectsUnmarshalable(t *testing.T) {
	_, err := encodeEvents([]Event{{Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `"bad"`)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"query":"cat"}`))
	require.NoError(t, err)
	assert.Equal(t, "cat", got.Query)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.ErrorIs(t, err, ErrMalformed)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type searchEvent struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

func TestRouterDispatch(t *testing.T) {
	router := NewRouter()
	var got []string
	HandleJSON(router, func(_ context.Context, key string, e searchEvent) error {
		got = append(got, key+":"+e.Query)
		return nil
	}, "search", "cache_hit")
	ctx := context.Background()

	require.NoError(t, router.Dispatch(ctx, Message{Key: "q1", Value: []byte(`{"type":"search","query":"cat"}`)}))
	require.NoError(t, router.Dispatch(ctx, Message{Key: "q2", Value: []byte(`{"type":"cache_hit","query":"dog"}`)}))
	assert.Equal(t, []string{"q1:cat", "q2:dog"}, got)

	err := router.Dispatch(ctx, Message{Value: []byte(`{"type":"mystery"}`)})
	assert.ErrorIs(t, err, ErrUnroutable)
	err = router.Dispatch(ctx, Message{Value: []byte(`{broken`)})
	assert.ErrorIs(t, err, ErrMalformed)
	err = router.Dispatch(ctx, Message{Value: []byte(`{"type":"search","query":7}`)})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestConsumerRoutesAndCommits(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{
			{Offset: 1, Key: []byte("q1"), Value: []byte(`{"type":"search","query":"cat"}`)},
			{Offset: 2, Value: []byte(`{broken`)},
			{Offset: 3, Value: []byte(`{"type":"mystery"}`)},
			{Offset: 4, Key: []byte("q4"), Value: []byte(`{"type":"search","query":"fail"}`)},
			{Offset: 5, Key: []byte("q5"), Value: []byte(`{"type":"search","query":"dog"}`)},
		},
	}
	router := NewRouter()
	var mu sync.Mutex
	var queries []string
	HandleJSON(router, func(_ context.Context, _ string, e searchEvent) error {
		if e.Query == "fail" {
			return errors.New("store unavailable")
		}
		mu.Lock()
		queries = append(queries, e.Query)
		mu.Unlock()
		return nil
	}, "search")

	c := newConsumer(reader, "events", router)
	c.backoff = resilience.Backoff{Attempts: 3, Initial: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		s := c.Stats()
		return s.Processed+s.Skipped+s.Failed == 5
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, ConsumerStats{Processed: 2, Skipped: 2, Failed: 1}, c.Stats())
	assert.Equal(t, []int64{1, 2, 3, 5}, reader.commits())
	mu.Lock()
	assert.Equal(t, []string{"cat", "dog"}, queries)
	mu.Unlock()
	assert.True(t, reader.closed)
}
