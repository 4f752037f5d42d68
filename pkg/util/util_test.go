package util

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertList(t *testing.T) {
	got := ConvertList([]int{1, 2, 3}, strconv.Itoa)
	assert.Equal(t, []string{"1", "2", "3"}, got)

	assert.Empty(t, ConvertList(nil, strconv.Itoa))
}

func TestSliceIncludes(t *testing.T) {
	assert.True(t, SliceIncludes([]string{"a", "b"}, "b"))
	assert.False(t, SliceIncludes([]string{"a", "b"}, "c"))
	assert.False(t, SliceIncludes(nil, "a"))
}

func TestGetHistogramVecReusesCollector(t *testing.T) {
	first, err := GetHistogramVec("chat_test_histogram", "status")
	assert.NoError(t, err)

	second, err := GetHistogramVec("chat_test_histogram", "status")
	assert.NoError(t, err)
	assert.Same(t, first, second)
}
