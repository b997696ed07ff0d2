package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	k := Key(3601411348, "[out:json];")

	assert.True(t, strings.HasPrefix(k, "trackfinder:ways:3601411348:"))
	assert.Len(t, strings.TrimPrefix(k, "trackfinder:ways:3601411348:"), 16)
	assert.Equal(t, k, Key(3601411348, "[out:json];"))
	assert.NotEqual(t, k, Key(3601411348, "[out:json][timeout:30];"))
	assert.NotEqual(t, k, Key(3601411349, "[out:json];"))
}
