package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/estufa-iot/services/api/store"
	"github.com/02loveslollipop/estufa-iot/services/api/validation"
)

// handleSubmitDocument validates and stores an XML document.
// POST /api/xml
func (s *Server) handleSubmitDocument(c *gin.Context) {
	raw, ok := s.readBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	receipt, err := s.deps.Ingest.Submit(ctx, raw)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       receipt.ID,
		"message":  "document accepted and stored",
		"sensors":  receipt.Sensors,
		"readings": receipt.Readings,
	})
}

// handleValidateDocument runs the pipeline without storing anything.
// POST /api/xml/validate
func (s *Server) handleValidateDocument(c *gin.Context) {
	raw, ok := s.readBody(c)
	if !ok {
		return
	}

	doc, err := s.deps.Ingest.Check(raw)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"root":     doc.Root,
		"sensors":  len(doc.Sensors),
		"readings": len(doc.Readings),
	})
}

// handleGetDocument returns the stored bytes unchanged.
// GET /api/xml/:id
func (s *Server) handleGetDocument(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	data, err := s.deps.Store.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ID", "message": "invalid document id"})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "document not found"})
		return
	case err != nil:
		s.log.Error("document read failed", slog.String("id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "document could not be read"})
		return
	}

	c.Data(http.StatusOK, "application/xml", data)
}

// readBody reads the request body up to MaxDocumentBytes. It writes the
// error response itself and reports false when the body is unusable.
func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body := c.Request.Body
	if body == nil {
		return nil, true
	}
	if s.cfg.MaxDocumentBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, s.cfg.MaxDocumentBytes)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    "PAYLOAD_TOO_LARGE",
				"message": "document exceeds the configured size limit",
				"limit":   tooLarge.Limit,
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "request body could not be read"})
		return nil, false
	}
	return raw, true
}

// writeFailure maps a pipeline or persistence error to its response.
func writeFailure(c *gin.Context, err error) {
	kind := validation.KindOf(err)

	body := gin.H{"code": string(kind)}
	var (
		syntaxErr *validation.SyntaxError
		schemaErr *validation.SchemaError
		ruleErr   *validation.RuleError
	)
	switch {
	case errors.Is(err, validation.ErrEmptyInput):
		body["message"] = "request body is empty"
	case errors.As(err, &syntaxErr):
		body["message"] = "document is not well-formed XML"
		body["details"] = syntaxErr.Details
	case errors.As(err, &schemaErr):
		body["message"] = "document does not conform to the reference schema"
		body["details"] = schemaErr.Details
	case errors.As(err, &ruleErr):
		body["message"] = ruleErr.Message
		body["locator"] = ruleErr.Locator
	case errors.Is(err, validation.ErrSchemaUnavailable):
		body["message"] = "reference schema is not available"
	case kind == validation.KindPersistence:
		body["message"] = "document could not be stored"
	default:
		body["code"] = "INTERNAL_ERROR"
		body["message"] = "internal error"
	}

	c.JSON(statusFor(kind), body)
}

func statusFor(kind validation.Kind) int {
	switch kind {
	case validation.KindEmptyInput, validation.KindSyntax, validation.KindSchema, validation.KindBusinessRule:
		return http.StatusBadRequest
	case validation.KindSchemaUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
