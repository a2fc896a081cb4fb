package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/nbcelltests/internal/models"
)

const pytestReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" errors="0" failures="1" skipped="1" tests="4">
    <testcase classname="_nb_test.TestNotebook" name="test_code_cell_1" time="0.250"/>
    <testcase classname="_nb_test.TestNotebook" name="test_code_cell_2" time="0.100">
      <failure message="AssertionError">Traceback (most recent call last)
AssertionError: x != 2</failure>
    </testcase>
    <testcase classname="_nb_test.TestNotebook" name="test_code_cell_3" time="0.000">
      <skipped type="pytest.skip" message="empty code cell"/>
    </testcase>
    <testcase classname="_nb_test.TestNotebook" name="test_cell_coverage" time="0.001"/>
    <testcase classname="conftest" name="test_unrelated" time="0.001"/>
  </testsuite>
</testsuites>`

func TestParseJUnit(t *testing.T) {
	msgs, err := ParseJUnit(strings.NewReader(pytestReport))
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, 1, msgs[0].Cell)
	assert.Equal(t, models.OutcomePassed, msgs[0].Outcome)
	assert.Equal(t, 250*time.Millisecond, msgs[0].Duration)
	assert.Equal(t, models.TestCell, msgs[0].Type)

	assert.Equal(t, 2, msgs[1].Cell)
	assert.Equal(t, models.OutcomeFailed, msgs[1].Outcome)
	assert.Contains(t, msgs[1].Detail, "AssertionError: x != 2")

	assert.Equal(t, models.OutcomeSkipped, msgs[2].Outcome)
	assert.Equal(t, "empty code cell", msgs[2].Detail)

	assert.Equal(t, -1, msgs[3].Cell)
	assert.Equal(t, models.TestCellCoverage, msgs[3].Type)
	assert.Equal(t, "Testing cell coverage", msgs[3].Message)
}

func TestParseJUnit_BareSuite(t *testing.T) {
	input := `<testsuite name="x"><testcase name="test_code_cell_4"><error message="boom"/></testcase></testsuite>`
	msgs, err := ParseJUnit(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 4, msgs[0].Cell)
	assert.Equal(t, models.OutcomeFailed, msgs[0].Outcome)
	assert.Equal(t, "boom", msgs[0].Detail)
}

func TestParseJUnit_PaddedNames(t *testing.T) {
	input := `<testsuite name="x"><testcase name="test_code_cell_02"/><testcase name="test_code_cell_11"/></testsuite>`
	msgs, err := ParseJUnit(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, msgs[0].Cell)
	assert.Equal(t, 11, msgs[1].Cell)
}

func TestParseJUnit_Invalid(t *testing.T) {
	_, err := ParseJUnit(strings.NewReader("not xml <"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JUnit report")
}
