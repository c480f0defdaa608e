package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskstats/internal/records"
	"taskstats/internal/schema"
	"taskstats/internal/storage"
	"taskstats/internal/transformer/builtin"
)

// Field messages for JSON bodies that do not decode into raw strings.
const (
	msgNull    = "This field may not be null."
	msgInvalid = "Not a valid string."
	msgUnique  = "A task with this %s already exists."
)

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) error {
	tasks, err := s.repo.ListTasks(r.Context())
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []schema.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, tasks)
	return nil
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) error {
	t, ok, err := s.lookup(w, r)
	if !ok || err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

// replaceTask is PUT: every field is validated as if the record were new.
func (s *Server) replaceTask(w http.ResponseWriter, r *http.Request) error {
	cur, ok, err := s.lookup(w, r)
	if !ok || err != nil {
		return err
	}
	raw, ok := decodeRecord(w, r)
	if !ok {
		return nil
	}
	return s.save(w, r, cur.ID, raw)
}

// patchTask is PATCH: given fields are merged over the stored record, then
// the result is validated as a whole.
func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) error {
	cur, ok, err := s.lookup(w, r)
	if !ok || err != nil {
		return err
	}
	patch, ok := decodeRecord(w, r)
	if !ok {
		return nil
	}
	raw := records.FromTask(cur)
	for k, v := range patch {
		raw[k] = v
	}
	return s.save(w, r, cur.ID, raw)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) error {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil
	}
	err := s.repo.DeleteTask(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// save validates raw, checks uniqueness against other stored tasks and
// writes it under id.
func (s *Server) save(w http.ResponseWriter, r *http.Request, id int64, raw records.Record) error {
	t, fe := builtin.NewValidate().Record(raw)
	if fe != nil {
		writeJSON(w, http.StatusBadRequest, fe)
		return nil
	}
	t.ID = id

	all, err := s.repo.ListTasks(r.Context())
	if err != nil {
		return err
	}
	if fe := uniqueErrors(all, t); fe != nil {
		writeJSON(w, http.StatusBadRequest, fe)
		return nil
	}

	err = s.repo.UpdateTask(r.Context(), t)
	switch {
	case errors.Is(err, storage.ErrConflict):
		// Lost a race with a concurrent write.
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"A task with these unique fields already exists."},
		})
		return nil
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil
	case err != nil:
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

// lookup resolves the {id} URL parameter. It writes 404 and returns
// ok=false when the task does not exist.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (schema.TaskRecord, bool, error) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return schema.TaskRecord{}, false, nil
	}
	t, err := s.repo.GetTask(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return schema.TaskRecord{}, false, nil
	}
	if err != nil {
		return schema.TaskRecord{}, false, err
	}
	return t, true, nil
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// decodeRecord reads a JSON object body into raw strings so it can go
// through the same validator as CSV rows. Numbers keep their literal text.
// Unknown keys and "id" are ignored.
func decodeRecord(w http.ResponseWriter, r *http.Request) (records.Record, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object.")
		return nil, false
	}

	rec := records.Record{}
	fe := builtin.FieldErrors{}
	for _, col := range schema.InsertColumns {
		v, present := body[col]
		if !present {
			continue
		}
		switch x := v.(type) {
		case string:
			rec[col] = x
		case json.Number:
			rec[col] = x.String()
		case bool:
			rec[col] = strconv.FormatBool(x)
		case nil:
			fe.Add(col, msgNull)
		default:
			fe.Add(col, msgInvalid)
		}
	}
	if len(fe) > 0 {
		writeJSON(w, http.StatusBadRequest, fe)
		return nil, false
	}
	return rec, true
}

// uniqueErrors reports which unique columns of t collide with another task.
func uniqueErrors(all []schema.TaskRecord, t schema.TaskRecord) builtin.FieldErrors {
	fe := builtin.FieldErrors{}
	for _, o := range all {
		if o.ID == t.ID {
			continue
		}
		if o.EmployeeID == t.EmployeeID && fe[schema.ColEmployeeID] == nil {
			fe.Add(schema.ColEmployeeID, fmt.Sprintf(msgUnique, "employee id"))
		}
		if o.EmployeeName == t.EmployeeName && fe[schema.ColEmployeeName] == nil {
			fe.Add(schema.ColEmployeeName, fmt.Sprintf(msgUnique, "employee name"))
		}
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}
