package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestAnnotateBuildLogStampsProjectAndIteration(t *testing.T) {
	rawLog := `{"errors":[{"file":"main.go","line":3,"message":"syntax error"}]}`

	annotated := annotateBuildLog(rawLog, "proj-1", 2)

	assert.Equal(t, "proj-1", gjson.Get(annotated, "project_id").String())
	assert.Equal(t, int64(2), gjson.Get(annotated, "retry_iteration").Int())
	assert.True(t, gjson.Get(annotated, "errors").IsArray(), "original errors array must survive annotation")
}

func TestAnnotateBuildLogStampsEmptyLog(t *testing.T) {
	annotated := annotateBuildLog("", "proj-2", 0)

	assert.Equal(t, "proj-2", gjson.Get(annotated, "project_id").String())
}
