package sqlite

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ClosesOnFailure(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("disk I/O error")
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	t.Run("ping", func(t *testing.T) {
		dtb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(dbErr)
		mock.ExpectClose()

		_, err = open(ctx, log, dtb)
		require.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("schema", func(t *testing.T) {
		dtb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS deployments").WillReturnError(dbErr)
		mock.ExpectClose()

		_, err = open(ctx, log, dtb)
		require.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ok", func(t *testing.T) {
		dtb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		t.Cleanup(func() { dtb.Close() })
		mock.ExpectPing()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS deployments").WillReturnResult(sqlmock.NewResult(0, 0))

		repo, err := open(ctx, log, dtb)
		require.NoError(t, err)
		assert.NotNil(t, repo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
