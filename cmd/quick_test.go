package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickPresetByNumber(t *testing.T) {
	var out bytes.Buffer
	preset, err := pickPreset(strings.NewReader("3\n"), &out)
	require.NoError(t, err)
	require.NotNil(t, preset)

	assert.Equal(t, 25, preset.users)
	assert.Equal(t, 120, preset.duration)
	assert.Equal(t, 15, preset.rampUp)
	assert.Contains(t, out.String(), "Select a test scenario")
}

func TestPickPresetExit(t *testing.T) {
	var out bytes.Buffer
	preset, err := pickPreset(strings.NewReader("0\n"), &out)
	require.NoError(t, err)
	assert.Nil(t, preset)
}

func TestPickPresetCustom(t *testing.T) {
	var out bytes.Buffer
	input := strings.NewReader("7\n42\n90\n20\n")

	preset, err := pickPreset(input, &out)
	require.NoError(t, err)
	require.NotNil(t, preset)
	assert.Equal(t, 42, preset.users)
	assert.Equal(t, 90, preset.duration)
	assert.Equal(t, 20, preset.rampUp)
}

func TestPickPresetCustomDefaults(t *testing.T) {
	var out bytes.Buffer
	input := strings.NewReader("7\n\n\n\n")

	preset, err := pickPreset(input, &out)
	require.NoError(t, err)
	require.NotNil(t, preset)
	assert.Equal(t, 10, preset.users)
	assert.Equal(t, 60, preset.duration)
	assert.Equal(t, 10, preset.rampUp)
}

func TestPickPresetRejectsInvalidChoice(t *testing.T) {
	var out bytes.Buffer
	_, err := pickPreset(strings.NewReader("99\n"), &out)
	assert.Error(t, err)

	_, err = pickPreset(strings.NewReader("nope\n"), &out)
	assert.Error(t, err)
}

func TestBatchScenarioTableEscalates(t *testing.T) {
	require.Len(t, batchScenarios, 4)
	previous := 0
	for _, s := range batchScenarios {
		assert.Greater(t, s.users, previous, "scenarios must escalate concurrency")
		assert.Greater(t, s.duration, s.rampUp)
		previous = s.users
	}
}
