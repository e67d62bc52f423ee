package web

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

var contentTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// responseSink writes an export straight to the HTTP response as a download.
type responseSink struct {
	w       http.ResponseWriter
	written bool
}

func (s *responseSink) Save(_ context.Context, filename string, data []byte) error {
	name := filepath.Base(filename)
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		ct = "application/octet-stream"
	}

	h := s.w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	s.written = true
	s.w.WriteHeader(http.StatusOK)
	_, err := s.w.Write(data)
	return err
}
