package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	FieldIndex       = "index"
	FieldSourceIndex = "source_index"
	FieldQuestion    = "question"
	FieldOptions     = "options"
	FieldAnswer      = "answer"
	FieldAnswerIdx   = "answer_idx"
	FieldMetaInfo    = "meta_info"
	FieldValue       = "value"
)

// ColumnOrder is the preferred leading column order of a serialized record.
// Extra fields follow in the order they were loaded.
var ColumnOrder = []string{FieldIndex, FieldSourceIndex, FieldQuestion, FieldOptions, FieldAnswer, FieldMetaInfo}

// Fields is an ordered JSON object whose values are kept undecoded.
type Fields = orderedmap.OrderedMap[string, json.RawMessage]

// NewFields returns an empty ordered field map.
func NewFields() *Fields {
	return orderedmap.New[string, json.RawMessage]()
}

// Record is one dataset entry. Known fields are held as raw JSON so that any
// value shape survives a load/write cycle; a nil field means it was absent.
type Record struct {
	Index       int
	SourceIndex *int
	Question    json.RawMessage
	Options     json.RawMessage
	Answer      json.RawMessage
	MetaInfo    json.RawMessage
	Extra       *Fields
}

// FromFields builds a record at the given index from a decoded object. Known
// keys are moved to their typed slots, everything else lands in Extra in its
// original order. An "index" key in fields is ignored.
func FromFields(index int, fields *Fields) Record {
	record := Record{Index: index, Extra: NewFields()}
	if fields == nil {
		return record
	}
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Key {
		case FieldIndex:
		case FieldSourceIndex:
			if sourceIndex, ok := parseInt(pair.Value); ok {
				record.SourceIndex = &sourceIndex
			} else {
				record.Extra.Set(pair.Key, pair.Value)
			}
		case FieldQuestion:
			record.Question = pair.Value
		case FieldOptions:
			record.Options = pair.Value
		case FieldAnswer:
			record.Answer = pair.Value
		case FieldMetaInfo:
			record.MetaInfo = pair.Value
		default:
			record.Extra.Set(pair.Key, pair.Value)
		}
	}
	return record
}

// Wrap builds the record used for a line whose value is not a JSON object.
func Wrap(index int, value json.RawMessage) Record {
	record := Record{Index: index, Extra: NewFields()}
	record.Extra.Set(FieldValue, value)
	return record
}

// Get returns the raw value of a field by its serialized name.
func (record Record) Get(name string) (json.RawMessage, bool) {
	switch name {
	case FieldIndex:
		return json.RawMessage(strconv.Itoa(record.Index)), true
	case FieldSourceIndex:
		if record.SourceIndex == nil {
			return nil, false
		}
		return json.RawMessage(strconv.Itoa(*record.SourceIndex)), true
	case FieldQuestion:
		return record.Question, record.Question != nil
	case FieldOptions:
		return record.Options, record.Options != nil
	case FieldAnswer:
		return record.Answer, record.Answer != nil
	case FieldMetaInfo:
		return record.MetaInfo, record.MetaInfo != nil
	}
	if record.Extra == nil {
		return nil, false
	}
	return record.Extra.Get(name)
}

// Columns lists the serialized field names of the record in column order.
func (record Record) Columns() []string {
	columns := make([]string, 0, len(ColumnOrder)+record.extraLen())
	for _, name := range ColumnOrder {
		if _, ok := record.Get(name); ok {
			columns = append(columns, name)
		}
	}
	if record.Extra != nil {
		for pair := record.Extra.Oldest(); pair != nil; pair = pair.Next() {
			columns = append(columns, pair.Key)
		}
	}
	return columns
}

func (record Record) extraLen() int {
	if record.Extra == nil {
		return 0
	}
	return record.Extra.Len()
}

// MarshalJSON writes the record as one compact object in column order.
func (record Record) MarshalJSON() ([]byte, error) {
	buffer := bytes.Buffer{}
	buffer.WriteByte('{')
	for position, name := range record.Columns() {
		value, _ := record.Get(name)
		if position > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		if len(value) == 0 {
			buffer.WriteString("null")
			continue
		}
		if err := json.Compact(&buffer, value); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// UnmarshalJSON reads a record previously written by MarshalJSON, keeping its
// index. Loading raw split files goes through the jsonl loader instead.
func (record *Record) UnmarshalJSON(data []byte) error {
	fields := NewFields()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	index := 0
	if raw, ok := fields.Get(FieldIndex); ok {
		parsed, ok := parseInt(raw)
		if !ok {
			return fmt.Errorf("index is not an integer: %s", string(raw))
		}
		index = parsed
	}
	*record = FromFields(index, fields)
	return nil
}

func parseInt(raw json.RawMessage) (int, bool) {
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	return value, true
}
