package logtail

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const chunkSize = 32 * 1024

// Read returns at most maxLines from the end of the file at path. The file
// is read backwards in chunks, so only the tail is ever loaded. A missing
// file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	var tail []byte
	offset := info.Size()
	for offset > 0 && bytes.Count(tail, []byte{'\n'}) <= maxLines {
		n := int64(chunkSize)
		if offset < n {
			n = offset
		}
		offset -= n
		chunk := make([]byte, n)
		if _, err := file.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read log: %w", err)
		}
		tail = append(chunk, tail...)
	}

	lines := strings.Split(strings.TrimRight(string(tail), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		// first line may be cut off at the chunk boundary
		lines = lines[1:]
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}

// Entry is one structured log line.
type Entry struct {
	Time    string
	Level   string
	Message string
	Fields  map[string]any
	Raw     string
}

// Parse decodes a JSON log line. Lines that are not JSON come back with only
// Raw set.
func Parse(line string) Entry {
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return Entry{Raw: line}
	}
	entry := Entry{Raw: line, Fields: map[string]any{}}
	for key, value := range payload {
		switch key {
		case "level", "lvl":
			entry.Level, _ = value.(string)
		case "message", "msg":
			entry.Message, _ = value.(string)
		case "time", "ts":
			entry.Time = fmt.Sprint(value)
		default:
			entry.Fields[key] = value
		}
	}
	entry.Level = strings.ToLower(entry.Level)
	return entry
}

// Format renders an entry as a single human-readable line.
func (e Entry) Format() string {
	if e.Fields == nil && e.Level == "" && e.Message == "" {
		return e.Raw
	}
	var b strings.Builder
	if e.Time != "" {
		b.WriteString(e.Time)
		b.WriteByte(' ')
	}
	if e.Level != "" {
		b.WriteString(strings.ToUpper(e.Level))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}
