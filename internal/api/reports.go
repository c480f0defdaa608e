package api

import (
	"math"
	"net/http"
	"strconv"

	"taskstats/internal/chart"
)

// Chart titles.
const (
	titleDepartmentHours = "Hours per Department"
	titleWorkload        = "Top Employees Workload & Pending Tasks"
	titleCompletion      = "Task Completion % per Dept"
	titleDelayed         = "Delayed Tasks - Hours Spent per Employee"
)

var workloadHeaders = []string{"Employee", "Total Hours", "Pending Tasks"}

func renderChart(w http.ResponseWriter, kind chart.Kind, title string, data chart.Data) error {
	b, err := chart.Render(kind, title, data)
	if err != nil {
		return err
	}
	writePNG(w, b)
	return nil
}

func (s *Server) departmentContribution(w http.ResponseWriter, r *http.Request) error {
	rows, err := s.reports.DepartmentContribution(r.Context())
	if err != nil {
		return err
	}
	if !wantChart(r) {
		writeResult(w, rows)
		return nil
	}
	var data chart.Data
	for _, row := range rows {
		data.Labels = append(data.Labels, row.Department)
		data.Values = append(data.Values, float64(row.TotalHours))
	}
	return renderChart(w, chart.Bar, titleDepartmentHours, data)
}

func (s *Server) workload(w http.ResponseWriter, r *http.Request) error {
	limit := s.cfg.WorkloadLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return nil
		}
		limit = n
	}

	rows, err := s.reports.Workload(r.Context(), limit)
	if err != nil {
		return err
	}
	if !wantChart(r) {
		writeResult(w, rows)
		return nil
	}
	data := chart.Data{Labels: workloadHeaders}
	for _, row := range rows {
		data.Rows = append(data.Rows, []string{
			row.EmployeeName,
			strconv.FormatInt(row.TotalHours, 10),
			strconv.FormatInt(row.PendingTasks, 10),
		})
	}
	return renderChart(w, chart.Table, titleWorkload, data)
}

func (s *Server) completion(w http.ResponseWriter, r *http.Request) error {
	rows, err := s.reports.Completion(r.Context())
	if err != nil {
		return err
	}
	if !wantChart(r) {
		writeResult(w, rows)
		return nil
	}
	var data chart.Data
	for _, row := range rows {
		data.Labels = append(data.Labels, row.Department)
		data.Values = append(data.Values, math.Round(row.CompletionPercentage*100)/100)
	}
	return renderChart(w, chart.Pie, titleCompletion, data)
}

func (s *Server) delayed(w http.ResponseWriter, r *http.Request) error {
	if !wantChart(r) {
		rows, err := s.reports.Delayed(r.Context())
		if err != nil {
			return err
		}
		writeResult(w, rows)
		return nil
	}

	rows, err := s.reports.DelayedHours(r.Context())
	if err != nil {
		return err
	}
	var data chart.Data
	for _, row := range rows {
		data.Labels = append(data.Labels, row.EmployeeName)
		data.Values = append(data.Values, float64(row.TotalHours))
	}
	return renderChart(w, chart.Line, titleDelayed, data)
}

func (s *Server) completedTaskHours(w http.ResponseWriter, r *http.Request) error {
	rows, err := s.reports.CompletedTaskHours(r.Context())
	if err != nil {
		return err
	}
	writeResult(w, rows)
	return nil
}
