package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// importTasks accepts a multipart upload in the "file" field.
func (s *Server) importTasks(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds %d bytes.", s.cfg.MaxUploadBytes))
			return nil
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return nil
	}
	defer file.Close()

	res, err := s.importer.Import(r.Context(), file)
	if err != nil {
		return err
	}
	log.Printf("api: import id=%s file=%q status=%s", res.ID, hdr.Filename, res.Status())
	if res.Failed() {
		writeJSON(w, http.StatusBadRequest, res)
		return nil
	}
	writeJSON(w, http.StatusCreated, res)
	return nil
}
