package handlers

import (
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pdfexport/internal/config"
	"pdfexport/internal/document"
	"pdfexport/internal/domain"
	"pdfexport/internal/infra/logging"
	"pdfexport/internal/tempfile"
)

// ExportRequest is the JSON body of POST /export-to-pdf.
type ExportRequest struct {
	HTML string `json:"html"`
}

const errNotJSON = "Did not attempt to load JSON data because the request Content-Type was not 'application/json'"

// ExportService bundles configuration and dependencies for the export
// endpoint.
type ExportService struct {
	Config   *config.Config
	Renderer domain.Renderer
	Redis    *redis.Client
}

// NewExportService creates a new ExportService. rdb may be nil.
func NewExportService(cfg config.Config, r domain.Renderer, rdb *redis.Client) *ExportService {
	return &ExportService{
		Config:   &cfg,
		Renderer: r,
		Redis:    rdb,
	}
}

// HandleExport converts the posted HTML and answers with the PDF as an
// attachment. The transient HTML and PDF files live until the server closes
// the response body stream.
func (svc *ExportService) HandleExport(c *fiber.Ctx) error {
	if !isJSON(c.Get(fiber.HeaderContentType)) {
		return fiber.NewError(fiber.StatusInternalServerError, errNotJSON)
	}

	req := &ExportRequest{}
	if len(c.Body()) > 0 {
		if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if req == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "request body is not a JSON object")
		}
	}
	if req.HTML == "" {
		return fiber.NewError(fiber.StatusBadRequest, domain.ErrEmptyHTML.Error())
	}

	doc := req.HTML
	if svc.Config.PDF.ApplyStylesheet {
		doc = document.Wrap(req.HTML)
	}

	var cacheKey string
	if svc.cacheEnabled() {
		cacheKey = computePDFCacheKey(doc, svc.Config.PDF)
		if cached, err := getCachedPDF(c.UserContext(), svc.Redis, cacheKey); err == nil && cached != nil {
			svc.setAttachment(c)
			return c.Send(cached)
		}
	}

	scope := tempfile.New(svc.Config.PDF.TempDir)
	handedOff := false
	defer func() {
		if handedOff {
			return
		}
		if err := scope.Release(); err != nil {
			logging.Warn("Temp file cleanup failed", "error", err)
		}
	}()

	htmlPath, err := scope.CreateHTML(doc)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	pdfPath := scope.Sibling(htmlPath, ".pdf")

	pdf, err := svc.Renderer.Render(c.UserContext(), svc.renderRequest(htmlPath))
	if err != nil {
		logging.Error("PDF generation failed", "error", err, "request_id", requestID(c))
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if svc.cacheEnabled() {
		setCachedPDF(c.UserContext(), svc.Redis, cacheKey, pdf, svc.Config.Cache.PDFCacheTTL)
	}

	body, size, err := scope.Body(pdfPath)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	logging.Info("PDF generated", "bytes", size, "request_id", requestID(c))
	svc.setAttachment(c)
	handedOff = true
	return c.SendStream(body, int(size))
}

func (svc *ExportService) renderRequest(htmlPath string) domain.RenderRequest {
	paper := svc.Config.PDF.Paper()
	req := domain.RenderRequest{
		URL:   fileURL(htmlPath),
		Paper: domain.PaperSize{Width: paper.Width, Height: paper.Height},
	}
	if svc.Config.PDF.ApplyStylesheet {
		// Margins come from the stylesheet's @page rule.
		req.PreferCSSPageSize = true
	} else {
		req.Margin = svc.Config.PDF.MarginInches
	}
	return req
}

func (svc *ExportService) setAttachment(c *fiber.Ctx) {
	c.Attachment(svc.Config.PDF.Filename)
	c.Set(fiber.HeaderContentType, "application/pdf")
}

func (svc *ExportService) cacheEnabled() bool {
	return svc.Redis != nil && svc.Config.Cache.PDFCacheEnabled
}

// isJSON accepts application/json and application/*+json media types.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == fiber.MIMEApplicationJSON || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func requestID(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
