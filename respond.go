// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routing

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Response lets a handler take full control of the HTTP response instead of
// relying on result coercion.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// writeResult coerces a handler's return value into an HTTP response:
//
//   - nil writes 204 No Content.
//   - *Response and Response are written verbatim.
//   - []byte is written raw as application/octet-stream.
//   - string and numeric scalars are HTML-escaped and written as text/html.
//   - Everything else is JSON-encoded as application/json.
func writeResult(w http.ResponseWriter, result any, logger *slog.Logger) {
	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case *Response:
		writeResponse(w, v)
	case Response:
		writeResponse(w, &v)
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(v)))
		w.WriteHeader(http.StatusOK)
		w.Write(v) //nolint:errcheck
	case string:
		writeHTML(w, v)
	case bool:
		writeHTML(w, strconv.FormatBool(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		writeHTML(w, fmt.Sprintf("%d", v))
	case float32:
		writeHTML(w, strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		writeHTML(w, strconv.FormatFloat(v, 'g', -1, 64))
	default:
		body, err := json.Marshal(v)
		if err != nil {
			logger.Error("response serialization failed", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body) //nolint:errcheck
	}
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body) //nolint:errcheck
	}
}

func writeHTML(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html.EscapeString(s))) //nolint:errcheck
}

// problemDetail is an RFC 9457 problem document.
type problemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	ErrorID  string `json:"error_id,omitempty"`
}

// writeProblem writes an RFC 9457 problem response. Each response carries a
// generated error_id so log lines and client reports can be correlated.
func writeProblem(w http.ResponseWriter, req *http.Request, status int, detail string) {
	p := problemDetail{
		Type:    "about:blank",
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  detail,
		ErrorID: uuid.NewString(),
	}
	if req != nil && req.URL != nil {
		p.Instance = req.URL.Path
	}

	body, err := json.Marshal(p)
	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}
