package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type LetterDocument struct {
	Reference     string
	Date          string
	SenderName    string
	SenderAddress []string
	Recipient     string
	Subject       string
	Body          string
}

const (
	bodyFontSize = 10
	charsPerLine = 95
	lineHeight   = 5.0
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateLetter(ctx context.Context, doc LetterDocument) (io.Reader, error) {
	if strings.TrimSpace(doc.Body) == "" {
		return nil, errors.New("letter body is empty")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		WithLeftMargin(20).
		WithRightMargin(20).
		WithTopMargin(20).
		Build()

	m := maroto.New(cfg)

	senderLines := append([]string{}, doc.SenderAddress...)
	if name := strings.TrimSpace(doc.SenderName); name != "" {
		senderLines = append([]string{name}, senderLines...)
	}
	if len(senderLines) > 0 {
		sender := col.New(6)
		for i, line := range senderLines {
			sender.Add(text.New(line, props.Text{Top: float64(i) * 4.5, Size: 9}))
		}
		m.AddRow(float64(len(senderLines))*4.5+4, col.New(6), sender)
	}

	m.AddRow(10,
		text.NewCol(6, doc.Recipient, props.Text{Style: fontstyle.Bold}),
		text.NewCol(6, doc.Date, props.Text{Align: align.Right, Size: 9}),
	)
	if ref := strings.TrimSpace(doc.Reference); ref != "" {
		m.AddRow(8, text.NewCol(12, "Our reference: "+ref, props.Text{Size: 9}))
	}
	m.AddRow(12,
		text.NewCol(12, doc.Subject, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   3,
		}),
	)

	for _, paragraph := range paragraphs(doc.Body) {
		m.AddRow(paragraphHeight(paragraph),
			text.NewCol(12, paragraph, props.Text{Size: bodyFontSize, Align: align.Left}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out.GetBytes()), nil
}

func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

// paragraphHeight estimates the wrapped height of a block in millimetres.
func paragraphHeight(paragraph string) float64 {
	lines := 0
	for _, line := range strings.Split(paragraph, "\n") {
		n := utf8.RuneCountInString(line)
		lines += 1 + n/charsPerLine
	}
	return float64(lines)*lineHeight + 3
}
