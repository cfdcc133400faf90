package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stock-movement-lab/internal/domain"
	"stock-movement-lab/internal/export"
	"stock-movement-lab/internal/idhash"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/session"
	"stock-movement-lab/internal/table"
)

func (s *Server) createSession(c *gin.Context) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.internalError(c, "create session", err)
		return
	}
	s.respondSuccess(c, http.StatusCreated, newSessionView(sess), "session created", nil)
}

// lookup resolves the :id parameter or writes a 404.
func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.sessionNotFound(c, id)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	s.respondSuccess(c, http.StatusOK, newSessionView(sess), "", nil)
}

func (s *Server) deleteSession(c *gin.Context) {
	if _, ok := s.lookup(c); !ok {
		return
	}
	s.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// upload reads a multipart "file" field (optional "sheet" field) into a session slot.
func (s *Server) upload(kind session.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.respondError(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
					"upload exceeds the size limit", gin.H{"limit_bytes": s.maxUploadBytes}, "")
				return
			}
			s.badRequest(c, "multipart field 'file' is required", gin.H{"error": err.Error()})
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.internalError(c, "open upload", err)
			return
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			s.internalError(c, "read upload", err)
			return
		}

		sheet := c.PostForm("sheet")
		t, err := table.ReadExcel(bytes.NewReader(content), sheet)
		if err != nil {
			s.respondError(c, http.StatusUnprocessableEntity, ErrCodeUnprocessableEntity,
				"file is not a readable .xlsx workbook", gin.H{"error": err.Error(), "sheet": sheet},
				"Upload an .xlsx file; name the worksheet with the 'sheet' field when it is not the first one")
			return
		}

		u := &session.Upload{
			Table:     t,
			DatasetID: idhash.ComputeDatasetID(string(kind), sheet, content),
			Filename:  fh.Filename,
			LoadedAt:  s.clock(),
		}
		sess.Put(kind, u)

		view := newUploadView(kind, u)
		var warnings []string
		if len(view.Missing) > 0 {
			warnings = append(warnings, "missing required columns: "+strings.Join(view.Missing, ", "))
		}
		s.respondSuccess(c, http.StatusCreated, view, fmt.Sprintf("%s loaded", kind), warnings)
	}
}

// analysisRequest reads projects, start, end and track_direction query parameters.
// An absent projects parameter selects the default projects; "projects=" selects none.
func analysisRequest(c *gin.Context, req *pipeline.Request) error {
	if raw, ok := c.GetQuery("projects"); ok {
		req.Projects = []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				req.Projects = append(req.Projects, p)
			}
		}
	}
	for _, param := range []struct {
		name string
		dst  **domain.Date
	}{{"start", &req.Start}, {"end", &req.End}} {
		raw := c.Query(param.name)
		if raw == "" {
			continue
		}
		d, err := domain.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", param.name, err)
		}
		*param.dst = &d
	}
	if raw := c.Query("track_direction"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("track_direction: %w", err)
		}
		req.TrackDirection = v
	}
	return nil
}

func (s *Server) analysis(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	req := sess.Request()
	if req.Movements == nil && !req.Directional() {
		s.respondError(c, http.StatusConflict, ErrCodeNoData, "no movement data loaded", nil,
			"Upload movements, or entries and exits, first")
		return
	}
	if err := analysisRequest(c, &req); err != nil {
		s.badRequest(c, "invalid query parameter", gin.H{"error": err.Error()})
		return
	}

	a, err := s.analyzer.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "analysis cancelled", gin.H{"error": err.Error()}, "")
		return
	}
	sess.SetAnalysis(a)
	view := newAnalysisView(a)

	if a.Outcome == pipeline.OutcomeValidationFailed {
		s.respondError(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, a.Message, view.Validation,
			"Check the column names of the uploaded file")
		return
	}
	s.hub.Publish(EventAnalysis, sess.ID, gin.H{
		"outcome":  a.Outcome,
		"selected": a.Selected,
		"peaks":    len(a.PeakSummary),
	})
	s.respondSuccess(c, http.StatusOK, view, a.Message, a.Warnings)
}

func (s *Server) export(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	a := sess.Analysis()
	if a == nil || a.Outcome != pipeline.OutcomeData {
		s.respondError(c, http.StatusConflict, ErrCodeNoData, "no analysis with data to export", nil,
			"Run GET /api/sessions/:id/analysis first")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, a); err != nil {
		s.internalError(c, "build workbook", err)
		return
	}
	s.metrics.RecordExport("xlsx")
	c.Header("Content-Disposition", `attachment; filename="analise_movimentacao.xlsx"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (s *Server) processCoverage(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	u := sess.Get(session.KindCoverage)
	if u == nil {
		s.respondError(c, http.StatusConflict, ErrCodeNoData, "no coverage data loaded", nil,
			"Upload a coverage file with POST /api/sessions/:id/coverage first")
		return
	}
	record := true
	if raw := c.Query("record"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.badRequest(c, "invalid query parameter", gin.H{"error": "record: " + err.Error()})
			return
		}
		record = v
	}

	res, err := s.processor.Process(c.Request.Context(), u.Table, record)
	if err != nil {
		s.respondError(c, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "coverage processing cancelled", gin.H{"error": err.Error()}, "")
		return
	}
	sess.SetCoverage(res)
	view := newCoverageView(res)

	if res.Outcome == pipeline.OutcomeValidationFailed {
		s.respondError(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, res.Message, view.Validation,
			"The coverage file needs a 'Nível de Cobertura' column")
		return
	}
	s.hub.Publish(EventCoverage, sess.ID, gin.H{
		"outcome":        res.Outcome,
		"total_items":    res.Summary.TotalItems,
		"total_critical": res.Summary.TotalCritical,
	})
	if view.History != nil {
		s.hub.Publish(EventHistory, "", view.History.Series)
	}
	s.respondSuccess(c, http.StatusOK, view, res.Message, res.Warnings)
}

func (s *Server) history(c *gin.Context) {
	if s.tracker == nil {
		s.respondError(c, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "history tracking is disabled", nil, "")
		return
	}
	series, source, err := s.tracker.Series(c.Request.Context())
	if err != nil {
		s.internalError(c, "load history", err)
		return
	}
	s.respondSuccess(c, http.StatusOK, gin.H{
		"source":  source,
		"durable": s.tracker.HasDurable(),
		"series":  historyViews(series),
	}, "", nil)
}
