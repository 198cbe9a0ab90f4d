package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

// Write replaces path with one JSON line per record. The file is written next
// to its destination and renamed into place once complete.
func Write(path string, records []dataset.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	temporary, createError := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if createError != nil {
		return fmt.Errorf("create output file: %w", createError)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			_ = temporary.Close()
			_ = os.Remove(temporaryPath)
		}
	}()

	if encodeError := Encode(temporary, records); encodeError != nil {
		return encodeError
	}
	if closeError := temporary.Close(); closeError != nil {
		return fmt.Errorf("close output file: %w", closeError)
	}
	if chmodError := os.Chmod(temporaryPath, 0o644); chmodError != nil {
		return fmt.Errorf("set output file mode: %w", chmodError)
	}
	if renameError := os.Rename(temporaryPath, path); renameError != nil {
		return fmt.Errorf("replace output file: %w", renameError)
	}
	committed = true
	return nil
}

// Encode writes records to writer, one compact object per line, in order.
func Encode(writer io.Writer, records []dataset.Record) error {
	buffered := bufio.NewWriter(writer)
	for _, record := range records {
		lineBytes, marshalError := record.MarshalJSON()
		if marshalError != nil {
			return fmt.Errorf("marshal record %d: %w", record.Index, marshalError)
		}
		if _, writeError := buffered.Write(append(lineBytes, '\n')); writeError != nil {
			return fmt.Errorf("write record: %w", writeError)
		}
	}
	if flushError := buffered.Flush(); flushError != nil {
		return fmt.Errorf("flush output: %w", flushError)
	}
	return nil
}
