package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeObject extracts the JSON object from a model response. Models asked
// for bare JSON still occasionally wrap it in code fences or prose, so after
// a direct parse fails we retry on the outermost brace span.
func decodeObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)

	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response contains no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("unparseable response: %w", err)
	}
	return obj, nil
}
