package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/custodia-finance/custodia/internal/apierror"
)

func networkConfigRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"network_id", "name", "chain_id", "contract_address", "hot_wallet_address", "decimals", "low_balance_threshold", "hot_wallet_balance", "balance_checked_at", "active", "paused", "last_scanned_block"}).
		AddRow("ntw_1", "ethereum", int64(1), "0xtoken", "0xhot", int32(18), "100", "250", time.Now(), true, false, int64(19000000))
}

func TestGetNetwork_ByIDOrName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT network_id, name, chain_id").
		WithArgs("ethereum").
		WillReturnRows(networkConfigRows())

	network, err := ds.GetNetwork(context.Background(), "ethereum")
	assert.NoError(t, err)
	assert.Equal(t, "ntw_1", network.NetworkID)
	assert.Equal(t, int32(18), network.Decimals)
	assert.Equal(t, uint64(19000000), network.LastScannedBlock)
}

func TestGetNetwork_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT network_id, name, chain_id").
		WithArgs("dogechain").
		WillReturnRows(sqlmock.NewRows([]string{"network_id"}))

	_, err = ds.GetNetwork(context.Background(), "dogechain")
	assert.Error(t, err)
	assert.True(t, apierror.NewAPIError(apierror.ErrNotFound, "", nil).Is(err))
}

func TestUpdateLastScannedBlock_NeverMovesBackwards(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// GREATEST pins the cursor when the incoming block is smaller; the row
	// still matches, so a backwards move is not an error.
	mock.ExpectExec(`SET last_scanned_block = GREATEST\(last_scanned_block, \$2\) WHERE network_id = \$1`).
		WithArgs("ntw_1", uint64(18999999)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateLastScannedBlock(context.Background(), "ntw_1", 18999999)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastScannedBlock_UnknownNetwork(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// A missing row means a miswired poller; surfacing it beats losing the
	// cursor silently on every scan.
	mock.ExpectExec("UPDATE custodia.network_configs").
		WithArgs("ntw_missing", uint64(19000001)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateLastScannedBlock(context.Background(), "ntw_missing", 19000001)
	assert.Error(t, err)
	assert.True(t, apierror.NewAPIError(apierror.ErrNotFound, "", nil).Is(err))
}

func TestSetNetworkPaused_UnknownNetwork(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE custodia.network_configs").
		WithArgs("ntw_missing", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.SetNetworkPaused(context.Background(), "ntw_missing", true)
	assert.Error(t, err)
	assert.True(t, apierror.NewAPIError(apierror.ErrNotFound, "", nil).Is(err))
}

func TestSetNetworkPaused_ByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// Operators address networks by name as much as by ID; the pause mutator
	// accepts both handles like GetNetwork does.
	mock.ExpectExec(`SET paused = \$2 WHERE network_id = \$1 OR name = \$1`).
		WithArgs("ethereum", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.SetNetworkPaused(context.Background(), "ethereum", true)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
