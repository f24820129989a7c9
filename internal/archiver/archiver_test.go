package archiver

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josancamon19/web-environments/internal/entity"
	"github.com/josancamon19/web-environments/internal/logging"
)

// memSink collects records in memory; safe for concurrent appends.
type memSink struct {
	mu        sync.Mutex
	requests  []entity.RequestRecord
	responses []entity.ResponseRecord
}

func (s *memSink) AppendRequest(r entity.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
	return nil
}

func (s *memSink) AppendResponse(r entity.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *memSink) responseByID(id string) *entity.ResponseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.responses {
		if s.responses[i].ExchangeID == id {
			return &s.responses[i]
		}
	}
	return nil
}

func TestExchangeLog_ConcurrentCorrelation(t *testing.T) {
	// Many overlapping exchanges completing in arbitrary order; every
	// response must land under its own exchange id.
	sink := &memSink{}
	l := NewExchangeLog(sink, 1<<20, logging.Nop())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("ex-%d", i)
			l.OnRequest(entity.RequestRecord{
				ExchangeID: id,
				Method:     "GET",
				URL:        fmt.Sprintf("https://example.com/r/%d", i),
				Timestamp:  time.Now().UTC(),
			})
			l.OnResponse(id, 200, nil, []byte(id), time.Now().UTC())
		}(i)
	}
	wg.Wait()

	require.Len(t, sink.requests, n)
	require.Len(t, sink.responses, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ex-%d", i)
		resp := sink.responseByID(id)
		require.NotNil(t, resp)
		require.Equal(t, []byte(id), resp.Body, "response body filed under the wrong exchange")
	}
}

func TestExchangeLog_BodyTruncation(t *testing.T) {
	sink := &memSink{}
	l := NewExchangeLog(sink, 8, logging.Nop())

	l.OnRequest(entity.RequestRecord{ExchangeID: "big", Body: []byte("0123456789abcdef")})
	l.OnResponse("big", 200, nil, []byte("0123456789abcdef"), time.Now().UTC())

	require.Len(t, sink.requests[0].Body, 8)
	require.True(t, sink.requests[0].Truncated)
	require.Len(t, sink.responses[0].Body, 8)
	require.True(t, sink.responses[0].Truncated)
}

func TestExchangeLog_SmallBodyNotTruncated(t *testing.T) {
	sink := &memSink{}
	l := NewExchangeLog(sink, 1<<20, logging.Nop())

	l.OnRequest(entity.RequestRecord{ExchangeID: "small", Body: []byte("ok")})
	require.False(t, sink.requests[0].Truncated)
	require.Equal(t, []byte("ok"), sink.requests[0].Body)
}

func TestExchangeLog_FailureRecorded(t *testing.T) {
	sink := &memSink{}
	l := NewExchangeLog(sink, 1<<20, logging.Nop())

	l.OnRequest(entity.RequestRecord{ExchangeID: "f1", URL: "https://example.com"})
	l.OnFailure("f1", "net::ERR_CONNECTION_RESET", time.Now().UTC())

	resp := sink.responseByID("f1")
	require.NotNil(t, resp)
	require.True(t, resp.Incomplete)
	require.Equal(t, "net::ERR_CONNECTION_RESET", resp.Reason)
}

func TestExchangeLog_UnknownResponseIgnored(t *testing.T) {
	// Traffic from before the listener attached has no request half.
	sink := &memSink{}
	l := NewExchangeLog(sink, 1<<20, logging.Nop())

	l.OnResponse("ghost", 200, nil, []byte("x"), time.Now().UTC())
	require.Empty(t, sink.responses)
}

func TestExchangeLog_DrainFlagsInFlight(t *testing.T) {
	sink := &memSink{}
	l := NewExchangeLog(sink, 1<<20, logging.Nop())

	l.OnRequest(entity.RequestRecord{ExchangeID: "done"})
	l.OnResponse("done", 200, nil, nil, time.Now().UTC())
	l.OnRequest(entity.RequestRecord{ExchangeID: "hanging-a"})
	l.OnRequest(entity.RequestRecord{ExchangeID: "hanging-b"})

	l.Drain()

	require.Equal(t, 0, l.InFlight())
	for _, id := range []string{"hanging-a", "hanging-b"} {
		resp := sink.responseByID(id)
		require.NotNil(t, resp, "drained exchange %s must have an incomplete response half", id)
		require.True(t, resp.Incomplete)
	}

	// Nothing is accepted after drain.
	l.OnRequest(entity.RequestRecord{ExchangeID: "late"})
	require.Nil(t, sink.responseByID("late"))
	var found bool
	sink.mu.Lock()
	for _, r := range sink.requests {
		if r.ExchangeID == "late" {
			found = true
		}
	}
	sink.mu.Unlock()
	require.False(t, found)

	// A straggler response for an already-drained id is dropped too.
	before := len(sink.responses)
	l.OnResponse("hanging-a", 200, nil, nil, time.Now().UTC())
	require.Len(t, sink.responses, before)
}
