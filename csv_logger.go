package popsimgo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
)

// CSVLogger is a DataLogger that writes simulation data as
// comma-delimited files.
type CSVLogger struct {
	eventPath   string
	patientPath string
	summaryPath string
}

// NewCSVLogger creates a CSV logger rooted at basepath for run instance i.
func NewCSVLogger(basepath string, i int) *CSVLogger {
	l := new(CSVLogger)
	l.SetBasePath(basepath, i)
	return l
}

// SetBasePath sets the base path of the logger.
func (l *CSVLogger) SetBasePath(basepath string, i int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath += fmt.Sprintf("log.%03d", i)
	}
	basepath = strings.TrimSuffix(basepath, ".")
	l.eventPath = basepath + fmt.Sprintf(".%03d.%s.csv", i, "events")
	l.patientPath = basepath + fmt.Sprintf(".%03d.%s.csv", i, "patients")
	l.summaryPath = basepath + fmt.Sprintf(".%03d.%s.json", i, "summary")
}

// Init writes the header row of each file.
func (l *CSVLogger) Init() error {
	if err := AppendToFile(l.eventPath, []byte("patientID,t,kind,payload\n")); err != nil {
		return err
	}
	return AppendToFile(l.patientPath, []byte("patientID,birthYear,sex,numEvents,dead\n"))
}

// WriteEvents records event rows to the events file.
func (l *CSVLogger) WriteEvents(c <-chan EventRow) {
	// Format
	// <patientID>  <t>  <kind>  <payload>
	const template = "%d,%.6f,%s,%q\n"
	var b bytes.Buffer
	for row := range c {
		b.WriteString(fmt.Sprintf(template, row.PatientID, row.T, row.Kind, row.Payload))
	}
	if err := AppendToFile(l.eventPath, b.Bytes()); err != nil {
		log.Printf("error writing events to %s: %s", l.eventPath, err)
	}
}

// WritePatients records roster rows to the patients file.
func (l *CSVLogger) WritePatients(c <-chan PatientRow) {
	// Format
	// <patientID>  <birthYear>  <sex>  <numEvents>  <dead>
	const template = "%d,%d,%s,%d,%t\n"
	var b bytes.Buffer
	for row := range c {
		b.WriteString(fmt.Sprintf(template, row.ID, row.BirthYear, row.Sex, row.NumEvents, row.Dead))
	}
	if err := AppendToFile(l.patientPath, b.Bytes()); err != nil {
		log.Printf("error writing patients to %s: %s", l.patientPath, err)
	}
}

// WriteSummary records aggregate metrics as JSON next to the CSV files.
func (l *CSVLogger) WriteSummary(s Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.summaryPath, b, 0644)
}
