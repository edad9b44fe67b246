package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/boa-portal/membership-sync/importer"
)

const (
	uploadField      = "file"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	templateFilename = "membership_import_template.xlsx"
)

type handlers struct {
	deps Deps
}

func (h *handlers) importMemberships(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large",
				"upload exceeds "+strconv.FormatInt(h.deps.MaxUploadBytes, 10)+" bytes")
			return
		}
		writeError(w, r, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "could not read uploaded file")
		return
	}

	result, err := h.deps.Importer.BulkImport(r.Context(), data)
	switch {
	case errors.Is(err, importer.ErrParse):
		writeError(w, r, http.StatusBadRequest, "invalid_spreadsheet", "uploaded file is not a readable xlsx workbook")
		return
	case errors.Is(err, importer.ErrEmptySheet):
		writeError(w, r, http.StatusBadRequest, "empty_spreadsheet", "spreadsheet contains no data rows")
		return
	case err != nil:
		h.deps.Logger.ErrorContext(r.Context(), "httpapi: import failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "import failed")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Data: result})
}

func (h *handlers) template(w http.ResponseWriter, r *http.Request) {
	data, err := importer.GenerateSampleTemplate()
	if err != nil {
		h.deps.Logger.ErrorContext(r.Context(), "httpapi: template generation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "could not generate template")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+templateFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
