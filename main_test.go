package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMainDemoRunsAndReportsInsertedTuple(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	main()

	w.Close()
	os.Stdout = oldStdout

	output, _ := io.ReadAll(r)
	text := string(output)

	assert.Contains(t, text, "inserted tuple")
	assert.Contains(t, text, "applied an update")
	assert.True(t, strings.Contains(text, "column 3: 2"))
}
