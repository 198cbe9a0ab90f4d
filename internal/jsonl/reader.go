package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// ParseError reports a line that is not a single valid JSON value.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (parseError *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: invalid json line: %v", parseError.Path, parseError.Line, parseError.Err)
}

func (parseError *ParseError) Unwrap() error {
	return parseError.Err
}

// Load reads every record of a split file.
func Load(path string) ([]dataset.Record, error) {
	file, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf("open split file: %w", openError)
	}
	defer file.Close()
	return Decode(file, path)
}

// Decode reads line-delimited JSON from reader. Each non-blank line becomes a
// record whose index is its position among non-blank lines; name is only used
// in parse errors.
func Decode(reader io.Reader, name string) ([]dataset.Record, error) {
	records := make([]dataset.Record, 0, 1024)
	buffered := bufio.NewReaderSize(reader, 64*1024)

	lineNumber := 0
	for {
		content, readError := buffered.ReadBytes('\n')
		if readError != nil && !errors.Is(readError, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", name, readError)
		}
		if len(content) > 0 {
			lineNumber++
			if line := bytes.TrimSpace(content); len(line) > 0 {
				record, parseError := parseLine(len(records), line)
				if parseError != nil {
					return nil, &ParseError{Path: name, Line: lineNumber, Err: parseError}
				}
				records = append(records, record)
			}
		}
		if readError != nil {
			return records, nil
		}
	}
}

func parseLine(index int, line []byte) (dataset.Record, error) {
	var raw json.RawMessage
	if unmarshalError := json.Unmarshal(line, &raw); unmarshalError != nil {
		return dataset.Record{}, unmarshalError
	}
	if !dataset.IsObject(raw) {
		return dataset.Wrap(index, raw), nil
	}

	fields := dataset.NewFields()
	if unmarshalError := fields.UnmarshalJSON(raw); unmarshalError != nil {
		return dataset.Record{}, unmarshalError
	}
	// The position always wins over any index carried by the source.
	fields.Delete(dataset.FieldIndex)
	if answerIdx, ok := fields.Get(dataset.FieldAnswerIdx); ok && !dataset.IsNull(answerIdx) {
		fields.Set(dataset.FieldAnswer, answerIdx)
		fields.Delete(dataset.FieldAnswerIdx)
	}
	return dataset.FromFields(index, fields), nil
}
