package archiver

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/josancamon19/web-environments/internal/entity"
)

// responseMeta holds the headers/status seen on NetworkResponseReceived;
// the body only becomes fetchable at NetworkLoadingFinished.
type responseMeta struct {
	status  int
	headers map[string]string
}

// Attach wires CDP network events on a page into the exchange log. Returns
// after installing listeners; they run until ctx is cancelled.
func (l *ExchangeLog) Attach(ctx context.Context, page *rod.Page) {
	var (
		mu   sync.Mutex
		meta = make(map[string]responseMeta)
	)

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil {
				return
			}
			l.OnRequest(entity.RequestRecord{
				ExchangeID:   string(ev.RequestID),
				Method:       ev.Request.Method,
				URL:          ev.Request.URL,
				ResourceType: string(ev.Type),
				Headers:      headersToMap(ev.Request.Headers),
				Body:         []byte(ev.Request.PostData),
				Cookies:      cookiesForURL(page, ev.Request.URL),
				Timestamp:    time.Now().UTC(),
			})
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			mu.Lock()
			meta[string(ev.RequestID)] = responseMeta{
				status:  ev.Response.Status,
				headers: headersToMap(ev.Response.Headers),
			}
			mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFinished) {
			id := string(ev.RequestID)
			mu.Lock()
			m, ok := meta[id]
			delete(meta, id)
			mu.Unlock()
			if !ok {
				return
			}
			body := fetchBody(page, ev.RequestID)
			l.OnResponse(id, m.status, m.headers, body, time.Now().UTC())
		},
		func(ev *proto.NetworkLoadingFailed) {
			id := string(ev.RequestID)
			mu.Lock()
			delete(meta, id)
			mu.Unlock()
			l.OnFailure(id, ev.ErrorText, time.Now().UTC())
		},
	)
	go wait()
}

// fetchBody pulls the response body over CDP. A page mid-teardown can
// refuse the call; that downgrades the exchange to a body-less response
// rather than failing the session.
func fetchBody(page *rod.Page, id proto.NetworkRequestID) []byte {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
	if err != nil || res == nil {
		return nil
	}
	if res.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return nil
		}
		return decoded
	}
	return []byte(res.Body)
}

// cookiesForURL snapshots the cookies visible to a request, for replay
// fidelity. Best effort.
func cookiesForURL(page *rod.Page, url string) []entity.Cookie {
	res, err := proto.NetworkGetCookies{Urls: []string{url}}.Call(page)
	if err != nil || res == nil {
		return nil
	}
	cookies := make([]entity.Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		cookies = append(cookies, entity.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return cookies
}

func headersToMap(h proto.NetworkHeaders) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
