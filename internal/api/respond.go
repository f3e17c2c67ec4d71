package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docslot/internal/container"
	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/pipeline"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

// uploadError carries the status code a failed upload maps to.
type uploadError struct {
	code int
	msg  string
}

func (e *uploadError) Error() string { return e.msg }

// readUpload validates and reads one uploaded .docx.
func readUpload(fh *multipart.FileHeader, maxBytes int64) (name string, data []byte, err error) {
	name = sanitizeFilename(fh.Filename)
	if !pipeline.IsDocx(name) {
		return name, nil, &uploadError{http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name))}
	}
	f, err := fh.Open()
	if err != nil {
		return name, nil, &uploadError{http.StatusBadRequest, "failed to open file"}
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return name, nil, &uploadError{http.StatusInternalServerError, "failed to read file"}
	}
	if int64(len(data)) > maxBytes {
		return name, nil, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes)}
	}
	return name, data, nil
}

func uploadStatus(err error) int {
	var ue *uploadError
	if errors.As(err, &ue) {
		return ue.code
	}
	return http.StatusBadRequest
}

// engineStatus maps an engine failure to an HTTP status.
func engineStatus(err error) int {
	var stage *engine.StageError
	switch {
	case errors.Is(err, container.ErrCorrupt),
		errors.Is(err, container.ErrNoDocumentPart),
		errors.Is(err, engine.ErrNoBody):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNoDocumentGenerator):
		return http.StatusNotImplemented
	case errors.As(err, &stage):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeDocx(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
