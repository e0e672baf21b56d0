package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecipe = `
name: standard-calibration
stages:
  - stage: importdata
    params:
      vis: ["/data/uid_A001.ms"]
    checkpoint: true
  - stage: flagdeterministic
  - stage: refant
    params:
      minscore: 0.5
  - stage: bandpass
    params:
      solint: inf
    checkpoint: true
`

func TestParseRecipe(t *testing.T) {
	t.Parallel()

	rec, err := ParseRecipe([]byte(sampleRecipe))
	require.NoError(t, err)

	assert.Equal(t, "standard-calibration", rec.Name)
	require.Len(t, rec.Stages, 4)

	assert.Equal(t, "importdata", rec.Stages[0].Stage)
	assert.True(t, rec.Stages[0].Checkpoint)
	assert.False(t, rec.Stages[1].Checkpoint)
	assert.Equal(t, "inf", rec.Stages[3].Params["solint"])
}

func TestParseRecipeRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := ParseRecipe([]byte("stages: [}"))
	assert.Error(t, err)

	_, err = ParseRecipe([]byte("name: empty\nstages: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stages")

	_, err = ParseRecipe([]byte("stages:\n  - params: {x: 1}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stage name")
}

func TestRecipeValidate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&fakeStage{name: "importdata"})

	ok := &Recipe{Stages: []StageCall{{Stage: "importdata"}}}
	assert.NoError(t, ok.Validate(reg))

	bad := &Recipe{Stages: []StageCall{{Stage: "importdata"}, {Stage: "selfcal"}}}
	err := bad.Validate(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")
}

func TestEnvParamHelpers(t *testing.T) {
	t.Parallel()

	env := &Env{Params: map[string]any{
		"solint":   "inf",
		"calwt":    true,
		"minsnr":   3.0,
		"nsols":    8,
		"flagbool": "true",
	}}

	assert.Equal(t, "inf", env.StringParam("solint", "int"))
	assert.Equal(t, "int", env.StringParam("missing", "int"))

	assert.True(t, env.BoolParam("calwt", false))
	assert.True(t, env.BoolParam("flagbool", false))
	assert.False(t, env.BoolParam("missing", false))

	assert.Equal(t, 3.0, env.FloatParam("minsnr", 5.0))
	assert.Equal(t, 8.0, env.FloatParam("nsols", 5.0))
	assert.Equal(t, 5.0, env.FloatParam("missing", 5.0))
}
