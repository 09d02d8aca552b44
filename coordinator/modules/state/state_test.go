package state_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/quorumd/coordinator/modules/state"
)

func TestLevelDBState_SetGet(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_SetGet"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	err = stg.Set("key", []byte("value"))
	req.NoError(err)

	value, err := stg.Get("key")
	req.NoError(err)
	req.Equal([]byte("value"), value)
}

func TestLevelDBState_GetMissingKey(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_GetMissingKey"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	value, err := stg.Get("missing")
	req.NoError(err)
	req.Nil(value)
}

func TestLevelDBState_Delete(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_Delete"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	err = stg.Set("key", []byte("value"))
	req.NoError(err)

	err = stg.Delete("key")
	req.NoError(err)

	value, err := stg.Get("key")
	req.NoError(err)
	req.Nil(value)
}

func TestLevelDBState_Range(t *testing.T) {
	var (
		req    = require.New(t)
		dbPath = "/tmp/quorumd_test_Range"
	)
	defer os.RemoveAll(dbPath)

	stg, err := state.NewLevelDBState(dbPath)
	req.NoError(err)
	defer stg.Close()

	req.NoError(stg.Set("proposals/1", []byte("one")))
	req.NoError(stg.Set("proposals/2", []byte("two")))
	req.NoError(stg.Set("validators", []byte("other")))

	values, err := stg.Range("proposals/")
	req.NoError(err)
	req.Len(values, 2)
}
