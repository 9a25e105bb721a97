package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	tests := []struct {
		page, limit int
		want        Pagination
	}{
		{1, 20, Pagination{Limit: 20, Offset: 0}},
		{3, 20, Pagination{Limit: 20, Offset: 40}},
		{0, 10, Pagination{Limit: 10, Offset: 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Page(tt.page, tt.limit))
	}
}
