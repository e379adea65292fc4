package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/statement-ledger/internal/converter"
	"github.com/insightdelivered/statement-ledger/internal/logger"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/storage"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// PreviewResponse is the JSON response from /api/preview and /api/parse-text.
type PreviewResponse struct {
	Success     bool                 `json:"success"`
	Data        models.ExtractedData `json:"data"`
	DownloadURL string               `json:"downloadUrl,omitempty"`
	Bank        string               `json:"bank"`
	BankName    string               `json:"bankName"`
	Stats       models.ParseStats    `json:"stats"`
	RawText     string               `json:"rawText,omitempty"`
	DebugLines  []models.DebugLine   `json:"debugLines,omitempty"`
}

// ConvertResponse is the JSON response from /api/convert.
type ConvertResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
}

// ParseTextRequest is the JSON body of /api/parse-text.
type ParseTextRequest struct {
	Text  string `json:"text"`
	Bank  string `json:"bank"`
	Debug bool   `json:"debug"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Converter      *converter.Converter
	Store          storage.Store
	DefaultFormat  writer.Format
	MaxUploadBytes int64
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"engine":  "fiber",
	})
}

// HandlePreview converts an upload and returns the ledger with a download link.
func (h *Handler) HandlePreview(c *fiber.Ctx) error {
	req, err := h.uploadRequest(c)
	if err != nil {
		return err
	}
	res, err := h.Converter.Convert(c.UserContext(), req)
	if err != nil {
		return h.conversionError(c, err)
	}
	resp := previewResponse(res)
	resp.DownloadURL = downloadURL(res.Artifact)
	if req.Debug {
		resp.RawText = res.Text
	}
	return c.JSON(resp)
}

// HandleConvert converts an upload and returns only the download link.
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	req, err := h.uploadRequest(c)
	if err != nil {
		return err
	}
	res, err := h.Converter.Convert(c.UserContext(), req)
	if err != nil {
		return h.conversionError(c, err)
	}
	return c.JSON(ConvertResponse{
		Success:     true,
		DownloadURL: downloadURL(res.Artifact),
		FileName:    res.Artifact,
	})
}

// HandleParseText parses text that was extracted elsewhere. Nothing is stored.
func (h *Handler) HandleParseText(c *fiber.Ctx) error {
	var body ParseTextRequest
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "Request body must be JSON with a text field.")
	}
	if strings.TrimSpace(body.Text) == "" {
		return writeError(c, fiber.StatusBadRequest, "No text supplied.")
	}
	bank, err := parser.ParseBank(body.Bank)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	res, err := h.Converter.Convert(c.UserContext(), converter.Request{
		Filename: "text",
		Text:     body.Text,
		Bank:     bank,
		Debug:    body.Debug,
	})
	if err != nil {
		return h.conversionError(c, err)
	}
	return c.JSON(previewResponse(res))
}

// HandleDownload streams a stored artifact as an attachment.
func (h *Handler) HandleDownload(c *fiber.Ctx) error {
	name := c.Params("name")
	rc, err := h.Store.Open(c.UserContext(), name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		return writeError(c, fiber.StatusBadRequest, "Invalid file name.")
	case errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "File not found.")
	case err != nil:
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	c.Attachment(name)
	return c.Send(data)
}

var errNotPDF = fiber.NewError(fiber.StatusBadRequest, "Only PDF files are allowed.")

// uploadRequest validates the multipart upload and builds a conversion request.
// Rejections are returned as *fiber.Error for the error handler to render.
func (h *Handler) uploadRequest(c *fiber.Ctx) (converter.Request, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return converter.Request{}, fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		return converter.Request{}, fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("File is too large. The limit is %d MB.", h.MaxUploadBytes>>20))
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") && fh.Header.Get(fiber.HeaderContentType) != "application/pdf" {
		return converter.Request{}, errNotPDF
	}

	f, err := fh.Open()
	if err != nil {
		return converter.Request{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return converter.Request{}, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return converter.Request{}, errNotPDF
	}

	format, err := writer.ParseFormat(c.FormValue("format"), h.DefaultFormat)
	if err != nil {
		return converter.Request{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	layout, err := writer.ParseLayout(c.FormValue("layout"))
	if err != nil {
		return converter.Request{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	bank, err := parser.ParseBank(c.FormValue("bank"))
	if err != nil {
		return converter.Request{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return converter.Request{
		Filename: filepath.Base(fh.Filename),
		PDF:      data,
		// Text extracted client-side (pdf.js) skips server extraction.
		Text:   c.FormValue("extractedText"),
		Format: format,
		Layout: layout,
		Bank:   bank,
		Debug:  c.FormValue("debug") == "true",
	}, nil
}

// conversionError maps pipeline failures to 422 with the user-facing message.
func (h *Handler) conversionError(c *fiber.Ctx, err error) error {
	log := logger.FromContext(c.UserContext())
	switch {
	case errors.Is(err, parser.ErrEmptyText), errors.Is(err, parser.ErrNoTransactionsFound):
		log.Warn().Err(err).Msg("statement rejected")
		return writeError(c, fiber.StatusUnprocessableEntity, parser.UserMessage(err))
	case errors.Is(err, parser.ErrUnsupportedBank), errors.Is(err, converter.ErrNoInput):
		return writeError(c, fiber.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("conversion failed")
		return writeError(c, fiber.StatusInternalServerError, parser.UserMessage(err))
	}
}

func previewResponse(res *converter.Result) PreviewResponse {
	data := res.Info.Data
	if data.Transactions == nil {
		data.Transactions = []models.Transaction{}
	}
	return PreviewResponse{
		Success:    true,
		Data:       data,
		Bank:       string(res.Info.Bank),
		BankName:   res.BankName,
		Stats:      res.Info.Stats,
		DebugLines: res.Info.DebugLines,
	}
}

func downloadURL(name string) string {
	if name == "" {
		return ""
	}
	return "/api/downloads/" + name
}
