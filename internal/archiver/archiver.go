// Package archiver records every request/response pair issued inside a
// capture context. Correlation is strictly by the driver-assigned exchange
// id, never by ordering assumptions, so overlapping requests cannot
// corrupt each other's records.
package archiver

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/entity"
)

// Sink receives finished record halves. *bundle.Writer satisfies it.
type Sink interface {
	AppendRequest(entity.RequestRecord) error
	AppendResponse(entity.ResponseRecord) error
}

// ExchangeLog is the archiver core. The request half is persisted the
// moment the driver reports it, so a recorded start always happens-before
// its recorded completion.
type ExchangeLog struct {
	mu       sync.Mutex
	inflight map[string]bool
	drained  bool

	bodyCap int
	sink    Sink
	log     *zap.SugaredLogger
}

// NewExchangeLog caps bodies at bodyCap bytes; larger payloads are
// truncated and flagged, never dropped.
func NewExchangeLog(sink Sink, bodyCap int, log *zap.SugaredLogger) *ExchangeLog {
	return &ExchangeLog{
		inflight: make(map[string]bool),
		bodyCap:  bodyCap,
		sink:     sink,
		log:      log,
	}
}

// OnRequest records the request half of an exchange.
func (l *ExchangeLog) OnRequest(r entity.RequestRecord) {
	r.Body, r.Truncated = l.capBody(r.Body)

	l.mu.Lock()
	if l.drained {
		l.mu.Unlock()
		return
	}
	l.inflight[r.ExchangeID] = true
	l.mu.Unlock()

	if err := l.sink.AppendRequest(r); err != nil {
		l.log.Warnw("request record dropped by sink", "exchange", r.ExchangeID, "err", err)
	}
}

// OnResponse fills in the response half for an exchange id. Responses for
// ids the log never saw a request for are ignored (traffic from before the
// listener attached).
func (l *ExchangeLog) OnResponse(id string, status int, headers map[string]string, body []byte, ts time.Time) {
	if !l.settle(id) {
		return
	}
	capped, truncated := l.capBody(body)
	l.append(entity.ResponseRecord{
		ExchangeID: id,
		Status:     status,
		Headers:    headers,
		Body:       capped,
		Truncated:  truncated,
		Timestamp:  ts,
	})
}

// OnFailure records an explicit failure so the exchange is flagged rather
// than left silently response-less.
func (l *ExchangeLog) OnFailure(id, reason string, ts time.Time) {
	if !l.settle(id) {
		return
	}
	l.append(entity.ResponseRecord{
		ExchangeID: id,
		Incomplete: true,
		Reason:     reason,
		Timestamp:  ts,
	})
}

// Drain flags every exchange still in flight as incomplete and stops
// accepting new traffic. Called once during session shutdown.
func (l *ExchangeLog) Drain() {
	l.mu.Lock()
	ids := make([]string, 0, len(l.inflight))
	for id := range l.inflight {
		ids = append(ids, id)
	}
	l.inflight = make(map[string]bool)
	l.drained = true
	l.mu.Unlock()

	sort.Strings(ids)
	now := time.Now().UTC()
	for _, id := range ids {
		l.append(entity.ResponseRecord{
			ExchangeID: id,
			Incomplete: true,
			Reason:     "in flight at session end",
			Timestamp:  now,
		})
	}
}

// InFlight returns how many exchanges still await a response.
func (l *ExchangeLog) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

func (l *ExchangeLog) settle(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.inflight[id] {
		return false
	}
	delete(l.inflight, id)
	return true
}

func (l *ExchangeLog) append(r entity.ResponseRecord) {
	if err := l.sink.AppendResponse(r); err != nil {
		l.log.Warnw("response record dropped by sink", "exchange", r.ExchangeID, "err", err)
	}
}

func (l *ExchangeLog) capBody(body []byte) ([]byte, bool) {
	if len(body) <= l.bodyCap {
		return body, false
	}
	return body[:l.bodyCap], true
}
