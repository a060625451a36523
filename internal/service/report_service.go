package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"kmms_simulator/internal/util"
	"kmms_simulator/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

type blockStyle string

const (
	styleHeading1  blockStyle = "Heading1"
	styleHeading2  blockStyle = "Heading2"
	styleHeading3  blockStyle = "Heading3"
	styleQuote     blockStyle = "IntenseQuote"
	styleParagraph blockStyle = ""
)

// ReportBlock 报告中的一个段落
type ReportBlock struct {
	Style blockStyle
	Text  string
}

// ReportService 将评审结果导出为 Word 文档
type ReportService struct {
	storage     StorageProvider
	institution string
}

func NewReportService(storage StorageProvider, institution string) *ReportService {
	return &ReportService{storage: storage, institution: institution}
}

type Report struct {
	Filename string
	Data     []byte
	URL      string
}

// Generate 生成 docx，并尽量归档到对象存储，归档失败不影响下载
func (s *ReportService) Generate(ctx context.Context, res *EvaluationResult, now time.Time) (*Report, error) {
	blocks := BuildReportBlocks(s.institution, res, now)

	var buf bytes.Buffer
	if err := WriteDocx(&buf, blocks, res.Language == LanguageArabic); err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	report := &Report{
		Filename: fmt.Sprintf("AASU_Proposal_Evaluation_%s.docx", now.Format("20060102_1504")),
		Data:     buf.Bytes(),
	}

	if s.storage != nil {
		url, err := s.storage.Upload(ctx, "reports/"+report.Filename, bytes.NewReader(report.Data), int64(len(report.Data)), util.MimeDocx)
		if err != nil {
			logger.Log.Warn("failed to archive evaluation report", zap.String("file", report.Filename), zap.Error(err))
		} else {
			report.URL = url
		}
	}
	return report, nil
}

// BuildReportBlocks 标题、元信息、附加说明、评审正文；正文中以 # 开头的行作为三级标题
func BuildReportBlocks(institution string, res *EvaluationResult, now time.Time) []ReportBlock {
	blocks := []ReportBlock{
		{Style: styleHeading1, Text: institution},
		{Style: styleHeading2, Text: "Research Proposal Evaluation Report"},
		{Text: "Date: " + now.Format(util.TimeFormat)},
		{Text: "Proposal file: " + res.Filename},
		{Text: "Language: " + res.Language},
		{Text: "Model (engine): " + res.Model},
		{Text: "Evaluation focus: " + res.FocusLabel},
		{Text: "Detail level: " + res.DetailLabel},
	}

	if strings.TrimSpace(res.ExtraInstructions) != "" {
		blocks = append(blocks,
			ReportBlock{Text: "Extra instructions from user:"},
			ReportBlock{Style: styleQuote, Text: res.ExtraInstructions},
		)
	}

	blocks = append(blocks,
		ReportBlock{Text: ""},
		ReportBlock{Style: styleHeading2, Text: "Evaluation"},
	)

	for _, line := range strings.Split(res.Evaluation, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			if clean := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#")); clean != "" {
				blocks = append(blocks, ReportBlock{Style: styleHeading3, Text: clean})
			}
			continue
		}
		blocks = append(blocks, ReportBlock{Text: line})
	}
	return blocks
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/></Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="120"/></w:pPr><w:rPr><w:b/><w:color w:val="002B5C"/><w:sz w:val="36"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="200" w:after="100"/></w:pPr><w:rPr><w:b/><w:color w:val="002B5C"/><w:sz w:val="30"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:color w:val="E87722"/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="IntenseQuote"><w:name w:val="Intense Quote"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="864" w:right="864"/></w:pPr><w:rPr><w:i/><w:color w:val="004B8D"/></w:rPr></w:style>` +
	`</w:styles>`

// WriteDocx 写出最小可用的 docx 包
func WriteDocx(w io.Writer, blocks []ReportBlock, rtl bool) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body func(io.Writer) error
	}{
		{"[Content_Types].xml", writeString(contentTypesXML)},
		{"_rels/.rels", writeString(packageRelsXML)},
		{"word/_rels/document.xml.rels", writeString(documentRelsXML)},
		{"word/styles.xml", writeString(stylesXML)},
		{"word/document.xml", func(w io.Writer) error { return writeDocumentXML(w, blocks, rtl) }},
	}

	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return err
		}
		if err := p.body(fw); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeDocumentXML(w io.Writer, blocks []ReportBlock, rtl bool) error {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for _, blk := range blocks {
		b.WriteString("<w:p>")
		if blk.Style != styleParagraph || rtl {
			b.WriteString("<w:pPr>")
			if blk.Style != styleParagraph {
				b.WriteString(`<w:pStyle w:val="` + string(blk.Style) + `"/>`)
			}
			if rtl {
				b.WriteString("<w:bidi/>")
			}
			b.WriteString("</w:pPr>")
		}
		if blk.Text != "" {
			b.WriteString(`<w:r><w:t xml:space="preserve">`)
			if err := xml.EscapeText(&b, []byte(blk.Text)); err != nil {
				return err
			}
			b.WriteString("</w:t></w:r>")
		}
		b.WriteString("</w:p>")
	}

	b.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr>`)
	b.WriteString("</w:body></w:document>")

	_, err := w.Write(b.Bytes())
	return err
}
