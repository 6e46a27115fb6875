package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
	assert.Equal(t, "unknown", d)
	assert.Equal(t, v, GetVersion())
}

func TestString_UsesLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := version, commit, date
	t.Cleanup(func() { version, commit, date = oldVersion, oldCommit, oldDate })

	version, commit, date = "v1.4.0", "abc123", "2026-03-01"
	assert.Equal(t, "encontrar version=v1.4.0 commit=abc123 date=2026-03-01", String())
	assert.Equal(t, "v1.4.0", GetVersion())
}
