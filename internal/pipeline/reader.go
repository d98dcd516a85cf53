package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TextColumn 是上传文件中承载反馈文本的列名（大小写不敏感）。
const TextColumn = "Text"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingTextColumn = errors.New("missing Text column")
	ErrEmptyFile         = errors.New("file has no rows")
)

// SupportedFormat 判断文件扩展名是否为 .csv 或 .xlsx，返回小写的扩展名。
func SupportedFormat(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext, ext == ".csv" || ext == ".xlsx"
}

// TagFromFilename 去掉目录和扩展名，得到批次标签。
func TagFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadTexts 读取表格文件中 Text 列的所有单元格，保持原有行序。
func ReadTexts(filename string, r io.Reader) ([]string, error) {
	ext, ok := SupportedFormat(filename)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	var rows [][]string
	var err error
	if ext == ".csv" {
		rows, err = readCSV(r)
	} else {
		rows, err = readXLSX(r)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), TextColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrMissingTextColumn
	}

	texts := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col < len(row) {
			texts = append(texts, row[col])
		} else {
			texts = append(texts, "")
		}
	}
	if len(texts) == 0 {
		return nil, ErrEmptyFile
	}
	return texts, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// detectDelimiter 根据表头行中逗号与分号的数量选择分隔符。
func detectDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		return ','
	}
	header := sc.Text()
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
