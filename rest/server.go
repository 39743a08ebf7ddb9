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
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gdamore/gamevisor"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler wraps a Manager, adding http.Handler functionality.
type Handler struct {
	m *gamevisor.Manager
	r *mux.Router
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}, etag string) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		if etag != "" {
			w.Header().Set("Etag", etag)
		}
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func errorCode(e error) int {
	switch {
	case errors.Is(e, gamevisor.ErrUnknownOperation):
		return http.StatusNotFound
	case gamevisor.IsKind(e, gamevisor.KindConfig):
		return http.StatusBadRequest
	case gamevisor.IsKind(e, gamevisor.KindProcess):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func etagOf(id int64) string {
	return strconv.FormatInt(id, 10)
}

// pollWait returns the Etag the client is waiting on, and how long it is
// willing to wait.
func pollWait(r *http.Request) (string, time.Duration) {
	etag := r.Header.Get(PollEtagHeader)
	secs, e := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if e != nil || secs < 0 {
		secs = 0
	}
	if secs > MaxPollTime {
		secs = MaxPollTime
	}
	return etag, time.Duration(secs) * time.Second
}

func (h *Handler) getInstance(w http.ResponseWriter, r *http.Request) {
	if etag, wait := pollWait(r); etag != "" && wait > 0 {
		if serial := h.m.Serial(); etagOf(serial) == etag {
			h.m.WatchSerial(serial, wait)
		}
	}
	st := h.m.Info()
	etag := etagOf(st.Serial)
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("Etag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	info := &InstanceInfo{
		Name:       st.Name,
		AppID:      st.AppID,
		Compat:     st.Compat,
		WorkingDir: st.WorkingDir,
		Running:    st.Running,
		Pid:        st.Pid,
		Monitoring: st.Monitoring,
		Status:     st.Status,
		TimeStamp:  st.TimeStamp,
		LastError:  st.LastError,
		CreateTime: st.CreateTime,
	}
	h.writeJson(w, info, etag)
}

func (h *Handler) doOperation(w http.ResponseWriter, r *http.Request) {
	op, e := gamevisor.ParseOperation(mux.Vars(r)["op"])
	if e != nil {
		h.writeError(w, &Error{errorCode(e), e.Error()})
		return
	}
	// Operations run to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	if e := h.m.Do(ctx, op); e != nil {
		h.writeError(w, &Error{errorCode(e), e.Error()})
		return
	}
	h.writeJson(w, ok, "")
}

func (h *Handler) checkUpdate(w http.ResponseWriter, r *http.Request) {
	u, e := h.m.CheckUpdate()
	if e != nil {
		h.writeError(w, &Error{http.StatusServiceUnavailable, e.Error()})
		return
	}
	h.writeJson(w, &UpdateInfo{
		CurrentBuildID:  u.CurrentBuildID,
		LatestBuildID:   u.LatestBuildID,
		UpdateAvailable: u.UpdateAvailable(),
	}, "")
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	if etag, wait := pollWait(r); etag != "" && wait > 0 {
		if last, e := strconv.ParseInt(etag, 10, 64); e == nil {
			h.m.WatchLog(last, wait)
		}
	}
	var last int64
	if etag := r.Header.Get("If-None-Match"); etag != "" {
		last, _ = strconv.ParseInt(etag, 10, 64)
	}
	recs, id := h.m.GetLog(last)
	if recs == nil && id == last {
		w.Header().Set("Etag", etagOf(id))
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.writeJson(w, recs, etagOf(id))
}

func (h *Handler) clearLog(w http.ResponseWriter, r *http.Request) {
	h.m.ClearLog()
	h.writeJson(w, ok, "")
}

func (h *Handler) getJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, h.m.Jobs(), "")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

func NewHandler(m *gamevisor.Manager) *Handler {
	r := mux.NewRouter()
	h := &Handler{m: m, r: r}
	r.HandleFunc("/instance", h.getInstance).Methods("GET")
	r.HandleFunc("/instance/update", h.checkUpdate).Methods("GET")
	r.HandleFunc("/instance/{op}", h.doOperation).Methods("POST")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/log", h.clearLog).Methods("DELETE")
	r.HandleFunc("/jobs", h.getJobs).Methods("GET")
	if pm, isProm := m.Metrics().(*gamevisor.PrometheusMetrics); isProm {
		r.Handle("/metrics", promhttp.HandlerFor(pm.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	}
	return h
}
