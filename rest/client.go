// Copyright 2026 The Gamevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

type LogInfo struct {
	etag    string
	Records []LogRecord
}

func (l *LogInfo) Etag() string {
	return l.etag
}

type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client

	// Cached data
	info *InstanceInfo
	log  *LogInfo
	lock sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.base, "/") + path
}

func (c *Client) request(ctx context.Context, method, url string) (*http.Request, error) {
	req, e := http.NewRequestWithContext(ctx, method, url, nil)
	if e != nil {
		return nil, e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	return req, nil
}

// readError turns a failed response into an *Error, using the server's
// message if it sent one.
func readError(res *http.Response) error {
	e := &Error{}
	if b, err := io.ReadAll(res.Body); err == nil && json.Unmarshal(b, e) == nil && e.Message != "" {
		return e
	}
	return &Error{Code: res.StatusCode, Message: res.Status}
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {
	req, e := c.request(ctx, http.MethodGet, url)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", readError(res)
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return "", e
	}
	if e := json.Unmarshal(body, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) pollInstance(ctx context.Context, secs int, last *InstanceInfo) (*InstanceInfo, error) {
	c.lock.Lock()
	cached := c.info
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if cached != nil && last.etag != cached.etag {
		// Our cache is already newer than what the caller has.
		return cached, nil
	} else {
		otag = last.etag
	}

	v := &InstanceInfo{}
	etag, e := c.poll(ctx, c.url("/instance"), otag, secs, v)
	if e != nil {
		c.lock.Lock()
		c.info = nil
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.info = v
	c.lock.Unlock()
	return v, nil
}

// GetInstance returns the current instance state.
func (c *Client) GetInstance(ctx context.Context) (*InstanceInfo, error) {
	return c.pollInstance(ctx, 0, nil)
}

// WatchInstance waits for the instance state to differ from last, for up
// to five minutes, and returns the state.
func (c *Client) WatchInstance(ctx context.Context, last *InstanceInfo) (*InstanceInfo, error) {
	return c.pollInstance(ctx, MaxPollTime, last)
}

func (c *Client) send(ctx context.Context, method, url string) error {
	req, e := c.request(ctx, method, url)
	if e != nil {
		return e
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "text/plain") // we don't really care
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return readError(res)
	}
	return nil
}

// Do asks the server to perform an operation, and waits for it to finish.
func (c *Client) Do(ctx context.Context, op string) error {
	return c.send(ctx, http.MethodPost, c.url("/instance/"+op))
}

func (c *Client) Start(ctx context.Context) error {
	return c.Do(ctx, "start")
}

func (c *Client) Stop(ctx context.Context) error {
	return c.Do(ctx, "stop")
}

func (c *Client) Restart(ctx context.Context) error {
	return c.Do(ctx, "restart")
}

func (c *Client) Update(ctx context.Context) error {
	return c.Do(ctx, "update")
}

func (c *Client) Install(ctx context.Context) error {
	return c.Do(ctx, "install")
}

func (c *Client) CheckUpdate(ctx context.Context) (*UpdateInfo, error) {
	v := &UpdateInfo{}
	if _, e := c.poll(ctx, c.url("/instance/update"), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) Jobs(ctx context.Context) ([]JobInfo, error) {
	v := []JobInfo{}
	if _, e := c.poll(ctx, c.url("/jobs"), "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) pollLog(ctx context.Context, secs int, last *LogInfo) (*LogInfo, error) {
	c.lock.Lock()
	cached := c.log
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if cached != nil && last.etag != cached.etag {
		return cached, nil
	} else {
		otag = last.etag
	}

	v := &LogInfo{}
	etag, e := c.poll(ctx, c.url("/log"), otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		c.log = nil
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.log = v
	c.lock.Unlock()
	return v, nil
}

func (c *Client) GetLog(ctx context.Context) (*LogInfo, error) {
	return c.pollLog(ctx, 0, nil)
}

// ClearLog empties the daemon's in-memory log.
func (c *Client) ClearLog(ctx context.Context) error {
	return c.send(ctx, http.MethodDelete, c.url("/log"))
}

// WatchLog waits for up to five minutes for the log to change from last.
func (c *Client) WatchLog(ctx context.Context, last *LogInfo) (*LogInfo, error) {
	return c.pollLog(ctx, MaxPollTime, last)
}

// NewClient returns a Client handle.  The transport may be nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	c := &Client{
		base:   baseURI,
		client: &http.Client{},
	}
	if t != nil {
		c.client.Transport = t
	}
	return c
}
