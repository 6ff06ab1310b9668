package main

import (
	"bytes"
	"go-ml.dev/pkg/dvcflow/model"
	"gotest.tools/v3/assert"
	"testing"
)

func Test_HyperParams(t *testing.T) {
	hp, err := hyperParams(nil)
	assert.NilError(t, err)
	assert.Equal(t, hp, model.HyperParams{Alpha: 0.5, L1Ratio: 0.5})

	hp, err = hyperParams([]string{"0.1"})
	assert.NilError(t, err)
	assert.Equal(t, hp, model.HyperParams{Alpha: 0.1, L1Ratio: 0.5})

	hp, err = hyperParams([]string{"1", "0"})
	assert.NilError(t, err)
	assert.Equal(t, hp, model.HyperParams{Alpha: 1, L1Ratio: 0})

	_, err = hyperParams([]string{"x"})
	assert.ErrorContains(t, err, "alpha must be a number")
	assert.ErrorContains(t, err, "usage: train [alpha] [l1_ratio]")
	_, err = hyperParams([]string{"0.1", "y"})
	assert.ErrorContains(t, err, "l1_ratio")
}

func Test_TooManyArgs(t *testing.T) {
	rootCmd.SetArgs([]string{"0.1", "0.2", "0.3"})
	assert.ErrorContains(t, rootCmd.Execute(), "accepts at most 2 arg(s)")
}

func Test_Help(t *testing.T) {
	for _, a := range []string{"--help", "-h"} {
		out := &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetArgs([]string{a})
		assert.NilError(t, rootCmd.Execute())
		assert.Assert(t, bytes.Contains(out.Bytes(), []byte("train [alpha] [l1_ratio]")), out.String())
		assert.Assert(t, bytes.Contains(out.Bytes(), []byte(description)), out.String())
	}
	rootCmd.SetOut(nil)
}
