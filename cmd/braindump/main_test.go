package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"detect", "list", "capture", "handoff", "watch", "resume", "info"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestNewRootCmd_HasVerboseFlag(t *testing.T) {
	root := newRootCmd()
	f := root.PersistentFlags().Lookup("verbose")
	if assert.NotNil(t, f) {
		assert.Equal(t, "false", f.DefValue)
	}
}
