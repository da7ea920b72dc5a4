package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/registry"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := jsonutil.Marshal(body)
	if err != nil {
		slog.Error("Failed to encode response", slog.Any("err", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError maps not-found registry lookups to 404 and everything else to 400.
func statusForError(err error) int {
	if registry.IsNotFound(err) {
		return http.StatusNotFound
	}

	return http.StatusBadRequest
}

func decodeBody(r *http.Request, out any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err = jsonutil.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse request body: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "project": s.fs.Project()})
}

type getOnlineFeaturesRequest struct {
	Features         []string         `json:"features,omitempty"`
	FeatureService   string           `json:"featureService,omitempty"`
	Entities         map[string][]any `json:"entities"`
	RequestData      map[string][]any `json:"requestData,omitempty"`
	FullFeatureNames bool             `json:"fullFeatureNames,omitempty"`
}

type getOnlineFeaturesResponse struct {
	Metadata struct {
		FeatureNames []string `json:"featureNames"`
	} `json:"metadata"`
	Results []featureVectorJSON `json:"results"`
}

type featureVectorJSON struct {
	Values          []any    `json:"values"`
	Statuses        []string `json:"statuses"`
	EventTimestamps []string `json:"eventTimestamps"`
}

func (s *Server) handleGetOnlineFeatures(w http.ResponseWriter, r *http.Request) {
	var req getOnlineFeaturesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	response, err := s.fs.GetOnlineFeatures(r.Context(), featurestore.OnlineFeaturesRequest{
		Features:         req.Features,
		FeatureService:   req.FeatureService,
		Entities:         req.Entities,
		RequestData:      req.RequestData,
		FullFeatureNames: req.FullFeatureNames,
	})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	var out getOnlineFeaturesResponse
	out.Metadata.FeatureNames = response.FeatureNames
	out.Results = make([]featureVectorJSON, len(response.Results))
	for idx, vector := range response.Results {
		encoded := featureVectorJSON{
			Values:          vector.Values,
			Statuses:        make([]string, len(vector.Statuses)),
			EventTimestamps: make([]string, len(vector.EventTimestamps)),
		}

		for i, status := range vector.Statuses {
			encoded.Statuses[i] = string(status)
		}
		for i, ts := range vector.EventTimestamps {
			if !ts.IsZero() {
				encoded.EventTimestamps[i] = ts.UTC().Format(time.RFC3339Nano)
			}
		}

		out.Results[idx] = encoded
	}

	writeJSON(w, http.StatusOK, out)
}

type pushRequest struct {
	Source string                `json:"source"`
	Rows   []map[string]any      `json:"rows"`
	To     featurestore.PushMode `json:"to,omitempty"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.To == "" {
		req.To = featurestore.PushModeOnline
	}

	if err := s.fs.Push(r.Context(), req.Source, req.Rows, req.To); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type writeToOnlineStoreRequest struct {
	FeatureView string           `json:"featureView"`
	Rows        []map[string]any `json:"rows"`
}

func (s *Server) handleWriteToOnlineStore(w http.ResponseWriter, r *http.Request) {
	var req writeToOnlineStoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.fs.WriteToOnlineStore(r.Context(), req.FeatureView, req.Rows); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type materializeRequest struct {
	Views []string `json:"views,omitempty"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start: %w", err))
		return
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
		return
	}

	if err = s.fs.Materialize(r.Context(), req.Views, start, end); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type materializeIncrementalRequest struct {
	Views []string `json:"views,omitempty"`
	End   string   `json:"end,omitempty"`
}

func (s *Server) handleMaterializeIncremental(w http.ResponseWriter, r *http.Request) {
	var req materializeIncrementalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	end := time.Now().UTC()
	if req.End != "" {
		var err error
		if end, err = time.Parse(time.RFC3339, req.End); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
			return
		}
	}

	if err := s.fs.MaterializeIncremental(r.Context(), req.Views, end); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
