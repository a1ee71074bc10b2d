package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJSONObject(t *testing.T) {
	assert.Nil(t, parseJSONObject(""))
	assert.Nil(t, parseJSONObject("   "))

	m := parseJSONObject(`{"author": "alice", "year": 2024}`)
	assert.Equal(t, "alice", m["author"])

	// Malformed input degrades to a raw value instead of failing
	m = parseJSONObject("not json at all")
	assert.Equal(t, "not json at all", m["value"])

	m = parseJSONObject(`["an", "array"]`)
	assert.Equal(t, `["an", "array"]`, m["value"])
}
