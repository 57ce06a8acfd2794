package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/reccache"
	"github.com/unkn0wn-root/reccache/record"
	"github.com/unkn0wn-root/reccache/sheet"
)

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: msgFileTooLarge})
			return
		}
		// A file part sent with an empty filename is parsed as a plain value.
		if r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
			badRequest(w, msgNoSelectedFile)
			return
		}
		badRequest(w, msgNoFilePart)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(hdr.Filename, ".xlsx") {
		badRequest(w, msgInvalidFormat)
		return
	}

	recs, err := sheet.Parse(file)
	if err != nil {
		h.log.Info("upload rejected", reccache.Fields{
			"request_id": RequestID(r.Context()),
			"file":       hdr.Filename,
			"err":        err,
		})
		badRequest(w, msgInvalidFormat)
		return
	}
	if err := h.svc.BulkInsert(r.Context(), recs); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: msgUploadStarted})
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("passenger_id")
	if strings.TrimSpace(raw) == "" {
		badRequest(w, msgIDRequired)
		return
	}
	id, err := record.ParseID(raw)
	if err != nil {
		badRequest(w, msgIDNotInteger)
		return
	}
	rec, err := h.svc.GetRecord(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type updateRequest struct {
	PassengerID any           `json:"passenger_id"`
	UpdateData  record.Record `json:"update_data"`
}

func (h *handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}
	if req.PassengerID == nil || len(req.UpdateData) == 0 {
		badRequest(w, msgUpdateRequired)
		return
	}
	id, err := record.ParseID(req.PassengerID)
	if err != nil {
		badRequest(w, msgIDNotInteger)
		return
	}

	res, err := h.svc.UpdateRecord(r.Context(), id, plainNumbers(req.UpdateData))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Matched {
		writeJSON(w, http.StatusNotFound, errorBody{Error: msgNotFound})
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msgUpdated})
}

type survivedRequest struct {
	Gender string `json:"gender"`
}

func (h *handler) survived(w http.ResponseWriter, r *http.Request) {
	var req survivedRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}
	n, err := h.svc.CountSurvivors(r.Context(), req.Gender)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// decodeJSON reads one JSON value, keeping numbers as json.Number.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

// plainNumbers converts json.Number values to int64 or float64 so every
// backend and cache codec sees native numbers.
func plainNumbers(r record.Record) record.Record {
	for k, v := range r {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			r[k] = i
		} else if f, err := n.Float64(); err == nil {
			r[k] = f
		}
	}
	return r
}
