// Copyright 2025 Veraxis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// ===== PDF Extractor =====

// PDFExtractor extracts text from PDF files, one page at a time so
// chunk metadata keeps page numbers.
type PDFExtractor struct{}

func (e *PDFExtractor) Supports(ext string) bool {
	return ext == ".pdf"
}

func (e *PDFExtractor) Extract(_ context.Context, path string) (*ExtractResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF %s: %w", path, err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF %s: %w", path, err)
	}

	var pages []ExtractedPage
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A damaged page should not sink the whole document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, ExtractedPage{Number: pageNum, Text: text})
	}

	return &ExtractResult{
		Pages: pages,
		Type:  "pdf",
		Metadata: map[string]string{
			"title": filepath.Base(path),
			"pages": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}

// ===== Office Extractor =====

// OfficeExtractor extracts text from Word and Excel documents.
type OfficeExtractor struct{}

func (e *OfficeExtractor) Supports(ext string) bool {
	return ext == ".docx" || ext == ".xlsx"
}

func (e *OfficeExtractor) Extract(_ context.Context, path string) (*ExtractResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return e.extractWord(path)
	case ".xlsx":
		return e.extractExcel(path)
	default:
		return nil, fmt.Errorf("unsupported office format: %s", path)
	}
}

func (e *OfficeExtractor) extractWord(path string) (*ExtractResult, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Word document %s: %w", path, err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()

	return &ExtractResult{
		Pages: []ExtractedPage{{Text: wordXMLToText(content)}},
		Type:  "docx",
		Metadata: map[string]string{
			"title": filepath.Base(path),
		},
	}, nil
}

// wordXMLToText flattens the raw document XML the docx library returns
// into plain text, turning paragraph ends into newlines.
func wordXMLToText(content string) string {
	replacer := strings.NewReplacer(
		"</w:p>", "\n",
		"<w:br/>", "\n",
		"<w:tab/>", "\t",
	)
	return stripHTML(replacer.Replace(content))
}

func (e *OfficeExtractor) extractExcel(path string) (*ExtractResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel document %s: %w", path, err)
	}
	defer f.Close()

	const maxCellsPerSheet = 1000

	var pages []ExtractedPage
	for sheetIndex, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var sheetText strings.Builder
		cellCount := 0
		for _, row := range rows {
			if cellCount >= maxCellsPerSheet {
				break
			}
			var cells []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					cells = append(cells, text)
					cellCount++
					if cellCount >= maxCellsPerSheet {
						break
					}
				}
			}
			if len(cells) > 0 {
				sheetText.WriteString(strings.Join(cells, " | "))
				sheetText.WriteByte('\n')
			}
		}

		if text := strings.TrimSpace(sheetText.String()); text != "" {
			pages = append(pages, ExtractedPage{
				Number:  sheetIndex + 1,
				Section: sheetName,
				Text:    text,
			})
		}
	}

	return &ExtractResult{
		Pages: pages,
		Type:  "xlsx",
		Metadata: map[string]string{
			"title":  filepath.Base(path),
			"sheets": fmt.Sprintf("%d", len(pages)),
		},
	}, nil
}
