package conversation

import (
	"bytes"
	"strings"
)

// Delimiter separates sender and body on a history line.
const Delimiter = "|||"

// encodeMessages renders messages as one "sender|||body" line each.
func encodeMessages(messages []Message) []byte {
	var buf bytes.Buffer
	for _, m := range messages {
		buf.WriteString(m.Sender)
		buf.WriteString(Delimiter)
		buf.WriteString(m.Body)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decodeMessages parses history lines. Lines that do not split into exactly
// two non-empty fields are skipped and counted.
func decodeMessages(data []byte) (messages []Message, skipped int) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		parts := strings.Split(line, Delimiter)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			skipped++
			continue
		}
		messages = append(messages, Message{Sender: parts[0], Body: parts[1]})
	}
	return messages, skipped
}

// encodable reports whether the pair survives a round trip through the line
// format. A pipe next to the delimiter would shift the split point.
func encodable(sender, body string) bool {
	for _, s := range []string{sender, body} {
		if strings.Contains(s, Delimiter) || strings.ContainsAny(s, "\r\n") {
			return false
		}
	}
	return !strings.HasSuffix(sender, "|") && !strings.HasPrefix(body, "|")
}
