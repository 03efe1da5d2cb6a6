package toolprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBuildErrorsParsesWellKnownFields(t *testing.T) {
	log := `{"errors":[{"file":"main.go","line":42,"message":"undefined: foo"}]}`
	errs := ExtractBuildErrors(log)
	assert.Equal(t, []BuildError{{File: "main.go", Line: 42, Message: "undefined: foo"}}, errs)
}

func TestExtractBuildErrorsAcceptsAliasFields(t *testing.T) {
	log := `{"errors":[{"path":"lib/util.go","line":7,"msg":"missing import"}]}`
	errs := ExtractBuildErrors(log)
	assert.Equal(t, []BuildError{{File: "lib/util.go", Line: 7, Message: "missing import"}}, errs)
}

func TestExtractBuildErrorsSkipsEntriesWithoutMessage(t *testing.T) {
	log := `{"errors":[{"file":"main.go","line":1}]}`
	errs := ExtractBuildErrors(log)
	assert.Empty(t, errs)
}

func TestExtractBuildErrorsReturnsNilForMissingErrorsArray(t *testing.T) {
	errs := ExtractBuildErrors(`{"status":"ok"}`)
	assert.Nil(t, errs)
}

func TestExtractBuildErrorsHandlesMalformedJSON(t *testing.T) {
	errs := ExtractBuildErrors(`not json at all`)
	assert.Nil(t, errs)
}
