package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/josancamon19/web-environments/internal/entity"
)

// SnapshotStorage reads the full storage surface (cookies plus the current
// origin's local/session storage) into a StorageState.
func (s *Service) SnapshotStorage() (entity.StorageState, error) {
	state := entity.StorageState{CapturedAt: time.Now().UTC()}

	cookiesRes, err := proto.NetworkGetCookies{}.Call(s.page)
	if err != nil {
		return state, fmt.Errorf("get cookies: %w", err)
	}
	for _, c := range cookiesRes.Cookies {
		state.Cookies = append(state.Cookies, entity.Cookie{
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

	origin := pageOrigin(s.CurrentURL())
	if origin == "" {
		return state, nil
	}

	local := s.dumpStorage("local")
	session := s.dumpStorage("session")
	if len(local) > 0 || len(session) > 0 {
		state.Origins = append(state.Origins, entity.OriginStorage{
			Origin:  origin,
			Local:   local,
			Session: session,
		})
	}
	return state, nil
}

// RestoreCookies seeds a context's cookie jar from a snapshot. Safe to call
// before any navigation.
func (s *Service) RestoreCookies(state entity.StorageState) error {
	if len(state.Cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

// SeedStorage installs an origin-matched bootstrap that fills local and
// session storage from the snapshot before any document script runs.
// Must be called before the first navigation: pages that gate rendering on
// a storage token have to find it on their very first load.
func (s *Service) SeedStorage(state entity.StorageState) error {
	src, err := StorageSeedScriptFor(state.Origins)
	if err != nil {
		return fmt.Errorf("build storage seed: %w", err)
	}
	if src == "" {
		return nil
	}
	if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{Source: src}).Call(s.page); err != nil {
		return fmt.Errorf("install storage seed: %w", err)
	}
	return nil
}

func (s *Service) dumpStorage(kind string) map[string]string {
	res, err := s.page.Eval(StorageDumpScript, kind)
	if err != nil || res == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func pageOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
