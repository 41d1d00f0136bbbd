package w25q

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSpan(t *testing.T) {
	tests := []struct {
		name      string
		startPage uint32
		offset    uint32
		n         uint32
		want      []pageSpan
	}{
		{
			name:   "crosses one boundary",
			offset: 250,
			n:      10,
			want:   []pageSpan{{0, 250, 6, 0}, {1, 0, 4, 6}},
		},
		{
			name: "whole page",
			n:    256,
			want: []pageSpan{{0, 0, 256, 0}},
		},
		{
			name:      "offset beyond first page",
			startPage: 16,
			offset:    300,
			n:         100,
			want:      []pageSpan{{17, 44, 100, 0}},
		},
		{
			name:   "three pages",
			offset: 200,
			n:      400,
			want:   []pageSpan{{0, 200, 56, 0}, {1, 0, 256, 56}, {2, 0, 88, 312}},
		},
		{
			name:   "empty",
			offset: 10,
			want:   []pageSpan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSpan(pageSize, tt.startPage, tt.offset, tt.n)
			assert.Equal(t, tt.want, got)

			var total uint32
			for i, s := range got {
				assert.LessOrEqual(t, s.offset+s.n, uint32(pageSize))
				if i > 0 {
					assert.Zero(t, s.offset)
				}
				assert.Equal(t, total, s.bufOff)
				total += s.n
			}
			assert.Equal(t, tt.n, total)
		})
	}
}
