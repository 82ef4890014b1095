// Package document renders printable user data sheets.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"dryengineer/internal/domain"
)

const (
	dateLayout = "2006-01-02 15:04"
	iconWidth  = 40.0

	unicodeFamily = "sheet"
	coreFamily    = "Helvetica"
)

// SystemFonts are TrueType fonts with Cyrillic coverage commonly found on
// Linux hosts and in font packages of container images.
var SystemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
}

// ResolveFont returns configured when set, otherwise the first readable
// entry of candidates, or "" when there is none.
func ResolveFont(configured string, candidates []string) string {
	if configured != "" {
		return configured
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// PDFRenderer lays out a single A4 page with the profile fields and, when
// one is stored, the profile image. Without a TrueType font only the
// cp1252 repertoire can be printed.
type PDFRenderer struct {
	Title string
	font  []byte
}

func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "User data sheet"
	}
	return &PDFRenderer{Title: title}
}

// NewUnicodePDFRenderer embeds the TrueType font at fontPath so that names
// in any script, Cyrillic included, print as entered.
func NewUnicodePDFRenderer(title, fontPath string) (*PDFRenderer, error) {
	font, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if err := checkFont(font); err != nil {
		return nil, fmt.Errorf("font %s: %w", fontPath, err)
	}
	r := NewPDFRenderer(title)
	r.font = font
	return r, nil
}

// checkFont loads font into a scratch document; the TrueType parser panics
// on some malformed files.
func checkFont(font []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unreadable truetype data: %v", p)
		}
	}()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(unicodeFamily, "", font)
	return pdf.Error()
}

// Unicode reports whether text is printed with an embedded UTF-8 font.
func (r *PDFRenderer) Unicode() bool { return len(r.font) > 0 }

func (r *PDFRenderer) Render(user domain.User, icon *domain.Asset) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("dryengineer", true)

	family := coreFamily
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.Unicode() {
		family = unicodeFamily
		pdf.AddUTF8FontFromBytes(family, "", r.font)
		pdf.AddUTF8FontFromBytes(family, "B", r.font)
		tr = func(s string) string { return s }
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 18)
	pdf.CellFormat(0, 12, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	top := pdf.GetY()
	if icon != nil && len(icon.Data) > 0 {
		if kind := imageType(icon.Filename); kind != "" {
			opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: true}
			pdf.RegisterImageOptionsReader(icon.Filename, opts, bytes.NewReader(icon.Data))
			if pdf.Ok() {
				pdf.ImageOptions(icon.Filename, 160, top, iconWidth, 0, false, opts, 0, "")
			} else {
				// a broken image must not cost the whole sheet
				pdf.ClearError()
			}
		}
	}

	pdf.SetY(top)
	for _, row := range fields(user) {
		pdf.SetFont(family, "B", 11)
		pdf.CellFormat(40, 8, tr(row[0]), "B", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 11)
		pdf.CellFormat(100, 8, tr(row[1]), "B", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func fields(u domain.User) [][2]string {
	created := ""
	if !u.DateCreate.IsZero() {
		created = u.DateCreate.UTC().Format(dateLayout)
	}
	return [][2]string{
		{"ID", strconv.FormatInt(u.ID, 10)},
		{"Login", u.Login},
		{"Name", u.Name},
		{"Surname", u.Surname},
		{"Email", u.Email},
		{"Access level", strconv.Itoa(u.AccessLevel)},
		{"Created", created},
		{"Icon", u.Icon},
	}
}

// imageType returns the gofpdf image type for a filename, or "" when the
// format cannot be embedded.
func imageType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "JPG"
	case ".png":
		return "PNG"
	case ".gif":
		return "GIF"
	}
	return ""
}
