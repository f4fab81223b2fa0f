package okta

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// storedCookie is the serialized form of one session cookie in the
// per-profile cookie file under the data directory.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadCookies seeds the client's jar with cookies from a previous run.
// A missing or unreadable file just means there is no session to reuse.
func loadCookies(path string, jar http.CookieJar, u *url.URL) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Debugf("ignoring corrupt cookie file %s: %s", path, err)
		return
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	jar.SetCookies(u, cookies)
}

// saveCookies merges the jar's current cookies into the cookie file.
// Merging rather than replacing preserves session-continuity cookies that
// Okta sets incrementally across exchanges.
func saveCookies(path string, jar http.CookieJar, u *url.URL) error {
	merged := map[string]string{}
	order := []string{}

	if raw, err := ioutil.ReadFile(path); err == nil {
		var stored []storedCookie
		if err := json.Unmarshal(raw, &stored); err == nil {
			for _, sc := range stored {
				if _, seen := merged[sc.Name]; !seen {
					order = append(order, sc.Name)
				}
				merged[sc.Name] = sc.Value
			}
		}
	}

	for _, c := range jar.Cookies(u) {
		if _, seen := merged[c.Name]; !seen {
			order = append(order, c.Name)
		}
		merged[c.Name] = c.Value
	}

	out := make([]storedCookie, 0, len(order))
	for _, name := range order {
		out = append(out, storedCookie{Name: name, Value: merged[name]})
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(path, raw, 0600)
}
