package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDefaultOptions(t *testing.T) {
	dev := DefaultOptions(false)
	prod := DefaultOptions(true)

	assert.Equal(t, logger.Info, dev.LogLevel)
	assert.Equal(t, logger.Warn, prod.LogLevel)
	assert.LessOrEqual(t, prod.MaxIdleConns, prod.MaxOpenConns)
	assert.NotNil(t, prod.gormLogger())
}
