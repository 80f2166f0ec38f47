package console

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestSechoAscii(t *testing.T) {
	var buf bytes.Buffer
	c := NewWithProfile(&buf, termenv.Ascii)

	c.Secho("Migrated 3 records", Green)
	c.Sechof(Red, "Record %s failed", "12")
	c.Check(true, "postgres")

	assert.Equal(t, "Migrated 3 records\nRecord 12 failed\n✓ postgres\n", buf.String())
}

func TestSechoANSI(t *testing.T) {
	var buf bytes.Buffer
	c := NewWithProfile(&buf, termenv.ANSI)

	c.Secho("oops", Red)
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "oops")
}

func TestColorProfileNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, ColorProfile())
}

func TestNewPlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Secho("done", Red)
	assert.Equal(t, "done\n", buf.String())
}
