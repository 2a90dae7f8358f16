package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
)

// maxLine bounds a single JSONL record.
const maxLine = 16 << 20

// LoadConversations reads conversations from a JSONL file, or from a file
// holding one JSON array. Malformed or id-less entries are logged and
// skipped.
func LoadConversations(path string, log *zap.Logger) ([]conversation.Conversation, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var out []conversation.Conversation
	err := each(path, func(pos int, v any) {
		c, ok := conversation.FromRaw(v)
		if !ok {
			log.Warn("skipping entry that is not a conversation", zap.String("file", path), zap.Int("entry", pos))
			return
		}
		out = append(out, c)
	}, log)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid conversations found in %s", path)
	}
	return out, nil
}

// LoadMessages reads standalone messages that reference their conversation
// by id. Entries without a conversation id are logged and skipped.
func LoadMessages(path string, log *zap.Logger) ([]conversation.Message, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var out []conversation.Message
	err := each(path, func(pos int, v any) {
		msgs := conversation.MessagesFromRaw(v)
		if len(msgs) == 0 {
			log.Warn("skipping entry without linked messages", zap.String("file", path), zap.Int("entry", pos))
			return
		}
		out = append(out, msgs...)
	}, log)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// each decodes every entry of path and hands it to fn with its 1-based
// position (line number for JSONL, element index for arrays).
func each(path string, fn func(pos int, v any), log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if first, err := firstByte(r); err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	} else if first == '[' {
		return eachArray(path, r, fn)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		v, err := decode(raw)
		if err != nil {
			log.Warn("skipping malformed JSON", zap.String("file", path), zap.Int("line", line), zap.Error(err))
			continue
		}
		fn(line, v)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

func eachArray(path string, r io.Reader, fn func(pos int, v any)) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for i, v := range items {
		fn(i+1, v)
	}
	return nil
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// firstByte peeks at the first non-whitespace byte. An empty file reports
// zero without error.
func firstByte(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			if _, err := r.ReadByte(); err != nil {
				return 0, err
			}
			continue
		}
		return b[0], nil
	}
}
