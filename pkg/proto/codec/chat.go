package codec

import (
	"encoding/json"
	"regexp"
	"strings"
)

var legacyCode = regexp.MustCompile("§.")

// StripLegacy removes section-sign color codes from s.
func StripLegacy(s string) string {
	return legacyCode.ReplaceAllString(s, "")
}

// PackChat wraps s into the minimal chat JSON document and packs it
// as a length-prefixed string.
func PackChat(s string) []byte {
	raw, _ := json.Marshal(map[string]string{"text": s})
	return PackByteArray(raw)
}

// ReadChat decodes a chat component string and renders it to plain text.
//
// Rendering concatenates "text", recurses into "extra", expands "translate"
// with its bracketed "with" arguments and strips legacy color codes.
func (b *Buffer) ReadChat() (string, error) {
	raw, err := b.ReadByteArray()
	if err != nil {
		return "", err
	}
	return renderChat(raw), nil
}

func renderChat(raw []byte) string {
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		// Servers occasionally send bare strings in place of components.
		return StripLegacy(string(raw))
	}
	var sb strings.Builder
	renderNode(node, &sb)
	return StripLegacy(sb.String())
}

func renderNode(node any, sb *strings.Builder) {
	switch v := node.(type) {
	case string:
		sb.WriteString(v)
	case []any:
		for _, child := range v {
			renderNode(child, sb)
		}
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			sb.WriteString(text)
		}
		if translate, ok := v["translate"].(string); ok {
			sb.WriteString(translate)
			if with, ok := v["with"].([]any); ok {
				sb.WriteString(" [")
				for i, arg := range with {
					if i > 0 {
						sb.WriteString(", ")
					}
					renderNode(arg, sb)
				}
				sb.WriteString("]")
			}
		}
		if extra, ok := v["extra"].([]any); ok {
			for _, child := range extra {
				renderNode(child, sb)
			}
		}
	}
}
