package popsimgo

import (
	"database/sql"
	"encoding/json"
	"os"
	"sync"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// EventRow is one recorded event flattened for persistence.
type EventRow struct {
	PatientID int
	T         float64
	Kind      string
	Payload   string
}

// PatientRow is one patient flattened for persistence.
type PatientRow struct {
	ID        int
	BirthYear int
	Sex       string
	NumEvents int
	Dead      bool
}

// DataLogger is the general definition of a logger that records
// simulation data to file, whether it writes text files or writes to a
// database.
type DataLogger interface {
	// SetBasePath sets the base path of the logger for run instance i.
	SetBasePath(path string, i int)
	// Init initializes the logger. For example, if the logger writes a
	// CSV file, Init can create the files and write header information
	// first. Or if the logger writes to a database, Init can be used to
	// create new tables.
	Init() error
	// WriteEvents records recorded events streamed over the channel.
	WriteEvents(c <-chan EventRow)
	// WritePatients records the patient roster streamed over the channel.
	WritePatients(c <-chan PatientRow)
	// WriteSummary records the aggregate metrics for a run.
	WriteSummary(s Summary) error
}

// AppendToFile appends bytes to the file at path, creating it if needed.
func AppendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// OpenSQLiteDB opens the SQLite database at the given path.
func OpenSQLiteDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", path)
}

// payloadJSON renders an event payload for a persistence row.
func payloadJSON(payload map[string]interface{}) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// RecordPatients streams a finished patient set through a DataLogger,
// fanning events and roster rows into the logger's channel writers.
func RecordPatients(logger DataLogger, patients []*Patient) error {
	if err := logger.Init(); err != nil {
		return err
	}
	events := make(chan EventRow)
	roster := make(chan PatientRow)
	go func() {
		for _, p := range patients {
			for _, e := range p.Events {
				events <- EventRow{
					PatientID: p.Index,
					T:         e.T,
					Kind:      e.Type,
					Payload:   payloadJSON(e.Payload),
				}
			}
		}
		close(events)
	}()
	go func() {
		for _, p := range patients {
			roster <- PatientRow{
				ID:        p.Index,
				BirthYear: p.BirthYear,
				Sex:       p.SexAtBirth,
				NumEvents: len(p.Events),
				Dead:      p.Dead,
			}
		}
		close(roster)
	}()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		logger.WriteEvents(events)
		wg.Done()
	}()
	go func() {
		logger.WritePatients(roster)
		wg.Done()
	}()
	wg.Wait()
	return logger.WriteSummary(ComputeSummary(patients))
}

// RecordKernelEvents streams one kernel patient's event log through a
// DataLogger's event writer.
func RecordKernelEvents(logger DataLogger, pid int, events []*Event) {
	c := make(chan EventRow)
	go func() {
		for _, e := range events {
			c <- EventRow{
				PatientID: pid,
				T:         e.Time,
				Kind:      string(e.Kind),
				Payload:   payloadJSON(e.Meta),
			}
		}
		close(c)
	}()
	logger.WriteEvents(c)
}
