package notifylog

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/types"
)

func TestFileLogAppendAndGet(t *testing.T) {
	var (
		req      = require.New(t)
		dataPath = "/tmp/quorumd_test_FileLogAppend"
		lockPath = "/tmp/quorumd_test_FileLogAppend_lock"
	)
	defer os.RemoveAll(dataPath)
	defer os.RemoveAll(lockPath)

	fl, err := NewFileLog(dataPath, lockPath)
	req.NoError(err)
	defer fl.Close()

	records := []Record{
		{Recipient: "alice", Type: types.NotificationNewProposal, Payload: []byte(`{"a":1}`), CreatedAt: time.Now()},
		{Recipient: "bob", Type: types.NotificationSignatureAdded, Payload: []byte(`{"b":2}`), CreatedAt: time.Now()},
	}
	err = fl.Append(records...)
	req.NoError(err)

	loaded, err := fl.GetRecords(0)
	req.NoError(err)
	req.Len(loaded, 2)
	req.Equal("alice", loaded[0].Recipient)
	req.Equal(uint64(0), loaded[0].Offset)
	req.Equal("bob", loaded[1].Recipient)
	req.Equal(uint64(1), loaded[1].Offset)
	req.NotEmpty(loaded[0].ID)
}

func TestFileLogGetRecordsFromOffset(t *testing.T) {
	var (
		req      = require.New(t)
		dataPath = "/tmp/quorumd_test_FileLogOffset"
		lockPath = "/tmp/quorumd_test_FileLogOffset_lock"
	)
	defer os.RemoveAll(dataPath)
	defer os.RemoveAll(lockPath)

	fl, err := NewFileLog(dataPath, lockPath)
	req.NoError(err)
	defer fl.Close()

	for _, recipient := range []string{"a", "b", "c"} {
		err = fl.Append(Record{Recipient: recipient, Type: types.NotificationNewProposal})
		req.NoError(err)
	}

	loaded, err := fl.GetRecords(2)
	req.NoError(err)
	req.Len(loaded, 1)
	req.Equal("c", loaded[0].Recipient)
}
