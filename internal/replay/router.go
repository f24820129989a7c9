package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/entity"
)

// MatchOutcome classifies one routing decision.
type MatchOutcome int

const (
	// MatchHit served the head of the key's queue.
	MatchHit MatchOutcome = iota
	// MatchReplayedExtra re-served the last archived GET/HEAD response
	// after the queue ran dry (polling endpoints outlive their recording).
	MatchReplayedExtra
	// MatchMiss found nothing archived under the key.
	MatchMiss
)

// Router matches live requests against archived exchanges. Per key it keeps
// a FIFO queue in original chronological order and pops on every hit, so
// stateful endpoints replay in their recorded temporal order and no
// exchange is served twice within its recorded count. Routers are
// per-replay-instance; queues are never shared.
type Router struct {
	mu     sync.Mutex
	queues map[string][]*entity.NetworkExchange
	last   map[string]*entity.NetworkExchange

	served map[string]bool
	missed map[string]bool

	log *zap.SugaredLogger
}

// NewRouter indexes a bundle's complete exchanges. Incomplete exchanges
// (no response recorded) are skipped; there is nothing to serve.
func NewRouter(exchanges []*entity.NetworkExchange, log *zap.SugaredLogger) *Router {
	r := &Router{
		queues: make(map[string][]*entity.NetworkExchange),
		last:   make(map[string]*entity.NetworkExchange),
		served: make(map[string]bool),
		missed: make(map[string]bool),
		log:    log,
	}

	// Reader order is request-start order; keep it stable per key.
	ordered := make([]*entity.NetworkExchange, len(exchanges))
	copy(ordered, exchanges)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Request.Timestamp.Before(ordered[j].Request.Timestamp)
	})

	for _, ex := range ordered {
		if !ex.Complete() {
			continue
		}
		key := MatchKey(ex.Request.Method, ex.Request.URL, ex.Request.Body)
		r.queues[key] = append(r.queues[key], ex)
		r.last[key] = ex
	}
	return r
}

// Match resolves one live request. On a hit the served exchange is consumed
// and never returned again.
func (r *Router) Match(method, rawURL string, body []byte) (*entity.NetworkExchange, MatchOutcome) {
	key := MatchKey(method, rawURL, body)

	r.mu.Lock()
	defer r.mu.Unlock()

	if q := r.queues[key]; len(q) > 0 {
		ex := q[0]
		r.queues[key] = q[1:]
		r.served[rawURL] = true
		return ex, MatchHit
	}

	// Queue exhausted. Idempotent reads may outnumber their recording
	// (pollers, cache revalidation); re-serve the final archived response.
	m := strings.ToUpper(method)
	if ex := r.last[key]; ex != nil && (m == "GET" || m == "HEAD") {
		r.served[rawURL] = true
		r.log.Debugw("re-serving archived response beyond recorded count",
			"method", method, "url", rawURL)
		return ex, MatchReplayedExtra
	}

	r.missed[rawURL] = true
	return nil, MatchMiss
}

// Remaining counts archived exchanges not yet served.
func (r *Router) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queues {
		n += len(q)
	}
	return n
}

// WriteLogs dumps served and unmatched URLs for post-run inspection.
func (r *Router) WriteLogs(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	r.mu.Lock()
	served := sortedKeys(r.served)
	missed := sortedKeys(r.missed)
	r.mu.Unlock()

	if err := writeURLLog(filepath.Join(dir, "cached.log"), served); err != nil {
		return err
	}
	return writeURLLog(filepath.Join(dir, "not-found.log"), missed)
}

// GuessStartURL picks the first archived document load that succeeded, for
// bundles that never recorded an explicit initial navigation step.
func GuessStartURL(exchanges []*entity.NetworkExchange) string {
	for _, ex := range exchanges {
		if ex.Request.ResourceType != "Document" && ex.Request.ResourceType != "document" {
			continue
		}
		if ex.Complete() && ex.Response.Status >= 200 && ex.Response.Status < 300 {
			return ex.Request.URL
		}
	}
	return ""
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeURLLog(path string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, u := range urls {
		fmt.Fprintln(&sb, u)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
