package toolprovider

import (
	"github.com/tidwall/gjson"
)

// BuildError is one structured build-failure record (spec §4.4.4 step 3:
// "collect structured build-error data (file paths, line numbers,
// messages)").
type BuildError struct {
	File    string
	Line    int
	Message string
}

// ExtractBuildErrors parses a JSON build-log artifact into BuildError
// tuples without the orchestrator needing to understand the underlying
// build tool's own schema beyond three well-known field names: a top-level
// "errors" array of objects each carrying "file", "line", "message" (or the
// common aliases "path"/"msg"). Entries missing a message are skipped;
// missing file/line are left zero-valued.
func ExtractBuildErrors(buildLog string) []BuildError {
	root := gjson.Parse(buildLog)
	errorsArr := root.Get("errors")
	if !errorsArr.Exists() || !errorsArr.IsArray() {
		return nil
	}

	var out []BuildError
	for _, entry := range errorsArr.Array() {
		result := gjson.GetManyBytes([]byte(entry.Raw), "file", "path", "line", "message", "msg")
		file := firstNonEmpty(result[0].String(), result[1].String())
		message := firstNonEmpty(result[3].String(), result[4].String())
		if message == "" {
			continue
		}
		line := int(result[2].Int())
		out = append(out, BuildError{File: file, Line: line, Message: message})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
