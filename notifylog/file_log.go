package notifylog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/juju/fslock"
)

var _ Log = (*FileLog)(nil)

// FileLog is a line-delimited JSON append log guarded by a file lock, for
// single-host deployments and tests.
type FileLog struct {
	lockFile *fslock.Lock
	dataFile *os.File
}

const defaultLockFile = "/tmp/quorumd_notifylog_lock"

func countLines(r io.Reader) uint64 {
	var count uint64
	fileScanner := bufio.NewScanner(r)

	for fileScanner.Scan() {
		count++
	}

	return count
}

// NewFileLog opens (or creates) the data file at filename. An optional
// second argument overrides the lock file path.
func NewFileLog(filename string, lockFilename ...string) (*FileLog, error) {
	var (
		fl  FileLog
		err error
	)
	if len(lockFilename) > 0 {
		fl.lockFile = fslock.New(lockFilename[0])
	} else {
		fl.lockFile = fslock.New(defaultLockFile)
	}

	if fl.dataFile, err = os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644); err != nil {
		return nil, fmt.Errorf("failed to open a data file: %v", err)
	}
	return &fl, nil
}

func (fl *FileLog) append(r Record) (Record, error) {
	var (
		data []byte
		err  error
	)
	if err = fl.lockFile.Lock(); err != nil {
		return r, fmt.Errorf("failed to lock a file: %v", err)
	}
	defer fl.lockFile.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	if _, err = fl.dataFile.Seek(0, 0); err != nil { // otherwise countLines will return zero
		return r, fmt.Errorf("failed to seek to the start of a data file: %v", err)
	}
	r.Offset = countLines(fl.dataFile)

	if data, err = json.Marshal(r); err != nil {
		return r, fmt.Errorf("failed to marshal a record %v: %v", r, err)
	}

	if _, err = fmt.Fprintln(fl.dataFile, string(data)); err != nil {
		return r, fmt.Errorf("failed to write a record to a data file: %v", err)
	}
	return r, nil
}

func (fl *FileLog) Append(records ...Record) error {
	var err error
	for i, r := range records {
		records[i], err = fl.append(r)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetRecords returns records from the log starting at the given offset.
func (fl *FileLog) GetRecords(offset uint64) ([]Record, error) {
	var (
		records []Record
		row     []byte
		data    Record
	)
	if _, err := fl.dataFile.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to seek to the start of a data file: %v", err)
	}
	scanner := bufio.NewScanner(fl.dataFile)
	for scanner.Scan() {
		if offset > 0 {
			offset--
			continue
		}

		row = scanner.Bytes()
		if err := json.Unmarshal(row, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal a record %s: %v", string(row), err)
		}
		records = append(records, data)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read a data file: %v", err)
	}
	return records, nil
}

func (fl *FileLog) Close() error {
	return fl.dataFile.Close()
}
