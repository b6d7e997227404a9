package formatresume

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/ledongthuc/pdf"
)

const StepID = "format"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
	}
}

// Execute extracts the text of the applicant's active resume and stores it
// for the following steps.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	resume, ok := req.Applicant.ActiveResume()
	if !ok {
		return apperrors.NewResumeUnreadableError("", fmt.Errorf("applicant %s has no resume", req.UserID))
	}

	path := resume.FilePath
	if !filepath.IsAbs(path) && h.config.StorageDir != "" {
		path = filepath.Join(h.config.StorageDir, path)
	}

	doc, err := h.Extract(ctx, path, resume.Extension())
	if err != nil {
		return apperrors.NewResumeUnreadableError(path, err)
	}
	if doc.Text == "" {
		return apperrors.NewResumeUnreadableError(path, fmt.Errorf("no text could be extracted"))
	}

	req.Artifacts.Set(pipeline.ArtifactResumeText, doc.Text)
	req.Artifacts.Set(pipeline.ArtifactResumePages, strconv.Itoa(doc.Pages))
	req.Artifacts.Set(pipeline.ArtifactResumeName, resume.Name)

	h.logger.Debug("resume formatted", map[string]interface{}{
		"itemId": req.Item.ID,
		"pages":  doc.Pages,
		"chars":  len(doc.Text),
	})
	return nil
}

func (h *Handler) Extract(ctx context.Context, path, ext string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch ext {
	case "pdf":
		doc, err = extractPDF(ctx, path)
	case "docx":
		doc, err = extractDOCX(path)
	case "txt":
		doc, err = extractText(path)
	default:
		return nil, fmt.Errorf("unsupported resume type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	doc.Text = Normalize(doc.Text)
	if h.config.MaxChars > 0 && len(doc.Text) > h.config.MaxChars {
		doc.Text = truncate(doc.Text, h.config.MaxChars)
	}
	return doc, nil
}

func extractPDF(ctx context.Context, path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := r.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return &Document{Text: b.String(), Pages: total}, nil
}

// extractDOCX reads the text runs of word/document.xml. Paragraphs become
// lines and explicit page breaks are counted.
func extractDOCX(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return nil, err
			}
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("word/document.xml not found")
	}
	defer body.Close()

	doc := &Document{Pages: 1}
	var b strings.Builder
	inText := false
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br":
				for _, a := range t.Attr {
					if a.Name.Local == "type" && a.Value == "page" {
						doc.Pages++
					}
				}
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	doc.Text = b.String()
	return doc, nil
}

func extractText(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Document{Text: string(data), Pages: 1}, nil
}

// Normalize drops control characters, collapses horizontal whitespace, trims
// every line and keeps at most one blank line between blocks.
func Normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' {
				return ' '
			}
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, line)
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
