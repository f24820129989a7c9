package entity

import "time"

// Cookie is the subset of a browser cookie that matters for replay.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  float64   `json:"expires,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
	Captured time.Time `json:"-"`
}

// RequestRecord is the request half of a NetworkExchange, written to the
// bundle the moment the driver reports the request. ExchangeID is the
// driver-assigned request identity, unique per in-flight request.
type RequestRecord struct {
	ExchangeID   string            `json:"exchange_id"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	ResourceType string            `json:"resource_type,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	Cookies      []Cookie          `json:"cookies,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// ResponseRecord is the response half, correlated by ExchangeID. A request
// that never completed still gets a record with Incomplete set; an
// exchange is never silently response-less.
type ResponseRecord struct {
	ExchangeID string            `json:"exchange_id"`
	Status     int               `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Truncated  bool              `json:"truncated,omitempty"`
	Incomplete bool              `json:"incomplete,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NetworkExchange is one correlated request/response pair as seen by a
// bundle reader. Response is nil for exchanges that were still in flight
// (or failed) when the session ended.
type NetworkExchange struct {
	Request  RequestRecord
	Response *ResponseRecord
}

// Complete reports whether a usable response was recorded.
func (e *NetworkExchange) Complete() bool {
	return e.Response != nil && !e.Response.Incomplete
}
