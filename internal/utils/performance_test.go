package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer_LogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	done := OperationTimer("refresh_quotes", log)
	done()

	assert.Contains(t, buf.String(), `"operation":"refresh_quotes"`)
	assert.Contains(t, buf.String(), "Operation completed")
}

func TestMeasureDBQuery_LogsRows(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	MeasureDBQuery("insert_transaction", log)(1)

	assert.Contains(t, buf.String(), `"rows_affected":1`)
	assert.Contains(t, buf.String(), `"query":"insert_transaction"`)
}
