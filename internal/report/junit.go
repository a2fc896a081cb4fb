package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/nbcelltests/internal/models"
)

type junitSuites struct {
	Suites []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Cases []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Time    string        `xml:"time,attr"`
	Failure *junitProblem `xml:"failure"`
	Error   *junitProblem `xml:"error"`
	Skipped *junitProblem `xml:"skipped"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

const (
	cellTestPrefix   = "test_code_cell_"
	coverageTestName = "test_cell_coverage"
)

// ParseJUnit reads a JUnit-XML report written by the test tool for a
// generated module. Only the module's test operations are returned; other
// test cases are ignored. Both <testsuites> and bare <testsuite> roots are accepted.
func ParseJUnit(r io.Reader) ([]models.TestMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JUnit report: %w", err)
	}

	var suites junitSuites
	if err := xml.Unmarshal(data, &suites); err != nil {
		return nil, fmt.Errorf("failed to parse JUnit report: %w", err)
	}
	if len(suites.Suites) == 0 {
		var single junitSuite
		if err := xml.Unmarshal(data, &single); err == nil {
			suites.Suites = []junitSuite{single}
		}
	}

	var msgs []models.TestMessage
	for _, s := range suites.Suites {
		for _, c := range s.Cases {
			msg, ok := caseMessage(c)
			if ok {
				msgs = append(msgs, msg)
			}
		}
	}
	return msgs, nil
}

func caseMessage(c junitCase) (models.TestMessage, bool) {
	var msg models.TestMessage
	switch {
	case c.Name == coverageTestName:
		msg = models.TestMessage{Cell: -1, Message: "Testing cell coverage", Type: models.TestCellCoverage}
	case strings.HasPrefix(c.Name, cellTestPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(c.Name, cellTestPrefix))
		if err != nil {
			return msg, false
		}
		msg = models.TestMessage{Cell: n, Message: "Testing cell", Type: models.TestCell}
	default:
		return msg, false
	}

	switch {
	case c.Failure != nil:
		msg.Outcome = models.OutcomeFailed
		msg.Detail = problemText(c.Failure)
	case c.Error != nil:
		msg.Outcome = models.OutcomeFailed
		msg.Detail = problemText(c.Error)
	case c.Skipped != nil:
		msg.Outcome = models.OutcomeSkipped
		msg.Detail = c.Skipped.Message
	default:
		msg.Outcome = models.OutcomePassed
	}

	if secs, err := strconv.ParseFloat(c.Time, 64); err == nil {
		msg.Duration = time.Duration(secs * float64(time.Second))
	}
	return msg, true
}

func problemText(p *junitProblem) string {
	if text := strings.TrimSpace(p.Text); text != "" {
		return text
	}
	return p.Message
}
