// Package httpapi exposes the record service over HTTP.
//
//	POST /upload                      multipart "file" (.xlsx)      -> 201
//	GET  /get_record?passenger_id=ID                                -> 200 record
//	PUT  /update_record               {"passenger_id","update_data"} -> 200
//	GET|POST /survived                {"gender"}                    -> 200 {"count"}
//	GET  /health, GET /metrics
package httpapi

import (
	"context"
	"net/http"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/store"
)

// DefaultMaxUploadBytes bounds /upload request bodies.
const DefaultMaxUploadBytes = 32 << 20

// RecordService is what the handlers need from *reccache.Service.
type RecordService interface {
	GetRecord(ctx context.Context, id int64) (record.Record, error)
	UpdateRecord(ctx context.Context, id int64, fields record.Record) (store.MatchResult, error)
	BulkInsert(ctx context.Context, records []record.Record) error
	CountSurvivors(ctx context.Context, gender string) (int64, error)
}

var _ RecordService = (*reccache.Service)(nil)

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveRequest(route, code string, seconds float64)
}

type Options struct {
	Service        RecordService
	Logger         reccache.Logger // nil => NopLogger
	MaxUploadBytes int64           // <= 0 => DefaultMaxUploadBytes
	Metrics        http.Handler    // served on /metrics when set
	Observer       RequestObserver // optional
}

type handler struct {
	svc       RecordService
	log       reccache.Logger
	maxUpload int64
}

// New returns the routed handler wrapped in recovery, request id and
// access logging middleware.
func New(opts Options) http.Handler {
	h := &handler{
		svc:       opts.Service,
		log:       opts.Logger,
		maxUpload: opts.MaxUploadBytes,
	}
	if h.log == nil {
		h.log = reccache.NopLogger{}
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /upload", h.upload)
	mux.HandleFunc("GET /get_record", h.getRecord)
	mux.HandleFunc("PUT /update_record", h.updateRecord)
	mux.HandleFunc("GET /survived", h.survived)
	mux.HandleFunc("POST /survived", h.survived)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var out http.Handler = mux
	out = loggingMiddleware(h.log, opts.Observer, out)
	out = requestIDMiddleware(out)
	out = recoverMiddleware(h.log, out)
	return out
}
