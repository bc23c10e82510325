package popsimgo

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// SQLiteLogger is a DataLogger that writes simulation data to a SQLite
// database. Each run instance gets its own set of tables.
type SQLiteLogger struct {
	dbPath     string
	instanceID int
}

// NewSQLiteLogger creates a SQLite logger rooted at basepath for run
// instance i.
func NewSQLiteLogger(basepath string, i int) *SQLiteLogger {
	l := new(SQLiteLogger)
	l.SetBasePath(basepath, i)
	return l
}

// SetBasePath sets the base path of the logger.
func (l *SQLiteLogger) SetBasePath(basepath string, i int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath += fmt.Sprintf("log.%03d", i)
	}
	l.dbPath = strings.TrimSuffix(basepath, ".") + ".db"
	l.instanceID = i
}

func (l *SQLiteLogger) tableName(base string) string {
	return fmt.Sprintf("%s%03d", base, l.instanceID)
}

// Init creates new tables in the database for this run instance.
func (l *SQLiteLogger) Init() error {
	newTable := func(tableName, cols string) error {
		db, err := OpenSQLiteDB(l.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		sqlStmt := fmt.Sprintf(`
	create table if not exists %s %s;
	delete from %s;
	`, tableName, cols, tableName)
		if _, err := db.Exec(sqlStmt); err != nil {
			return fmt.Errorf("%q: %s", err, sqlStmt)
		}
		return nil
	}
	err := newTable(l.tableName("Event"),
		"(id integer not null primary key, patientID integer, t real, kind text, payload text)")
	if err != nil {
		return err
	}
	err = newTable(l.tableName("Patient"),
		"(id integer not null primary key, birthYear integer, sex text, numEvents integer, dead integer)")
	if err != nil {
		return err
	}
	return newTable(l.tableName("Summary"),
		"(id integer not null primary key, patients integer, avgEventsPerPatient real, diagnosisEvents integer, deathFraction real)")
}

// WriteEvents records event rows into the Event table.
func (l *SQLiteLogger) WriteEvents(c <-chan EventRow) {
	db, err := OpenSQLiteDB(l.dbPath)
	if err != nil {
		log.Printf("error opening %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		log.Printf("error opening transaction on %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		"insert into %s(patientID, t, kind, payload) values(?, ?, ?, ?)",
		l.tableName("Event")))
	if err != nil {
		log.Printf("error preparing insert on %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	defer stmt.Close()
	for row := range c {
		if _, err := stmt.Exec(row.PatientID, row.T, row.Kind, row.Payload); err != nil {
			log.Printf("error inserting event row: %s", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("error committing events to %s: %s", l.dbPath, err)
	}
}

// WritePatients records roster rows into the Patient table.
func (l *SQLiteLogger) WritePatients(c <-chan PatientRow) {
	db, err := OpenSQLiteDB(l.dbPath)
	if err != nil {
		log.Printf("error opening %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		log.Printf("error opening transaction on %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		"insert into %s(id, birthYear, sex, numEvents, dead) values(?, ?, ?, ?, ?)",
		l.tableName("Patient")))
	if err != nil {
		log.Printf("error preparing insert on %s: %s", l.dbPath, err)
		for range c {
		}
		return
	}
	defer stmt.Close()
	for row := range c {
		dead := 0
		if row.Dead {
			dead = 1
		}
		if _, err := stmt.Exec(row.ID, row.BirthYear, row.Sex, row.NumEvents, dead); err != nil {
			log.Printf("error inserting patient row: %s", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("error committing patients to %s: %s", l.dbPath, err)
	}
}

// WriteSummary records the aggregate metrics into the Summary table.
func (l *SQLiteLogger) WriteSummary(s Summary) error {
	db, err := OpenSQLiteDB(l.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf(
		"insert into %s(patients, avgEventsPerPatient, diagnosisEvents, deathFraction) values(?, ?, ?, ?)",
		l.tableName("Summary")),
		s.Patients, s.AvgEventsPerPatient, s.DiagnosisEvents, s.DeathFraction)
	return err
}
