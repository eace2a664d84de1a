package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"rollcall/internal/ledger"
	"rollcall/internal/store"
)

func rec(student, name, date, code string) ledger.Record {
	return ledger.Record{
		StudentID:   student,
		StudentName: name,
		Timestamp:   "9:00:00 AM",
		Date:        date,
		SessionCode: code,
	}
}

func TestLedger_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps insertion order", func(t *testing.T) {
		l := ledger.New(store.NewMemory())

		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))
		require.NoError(t, l.Append(ctx, rec("s2", "Ben", "1/1/2024", "AB12CD")))

		all, err := l.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "Ann", all[0].StudentName)
		require.Equal(t, "Ben", all[1].StudentName)
	})

	t.Run("rejects a duplicate student and session pair", func(t *testing.T) {
		l := ledger.New(store.NewMemory())

		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))
		err := l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD"))
		require.ErrorIs(t, err, ledger.ErrDuplicate)

		all, err := l.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})

	t.Run("same student may attend a different session", func(t *testing.T) {
		l := ledger.New(store.NewMemory())

		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))
		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/2/2024", "ZZ99XX")))
	})

	t.Run("legacy records without a code are never duplicates", func(t *testing.T) {
		l := ledger.New(store.NewMemory())

		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "")))
		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "")))
	})
}

func TestLedger_Filters(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))
	require.NoError(t, l.Append(ctx, rec("s2", "Ben", "1/1/2024", "ZZ99XX")))
	require.NoError(t, l.Append(ctx, rec("s3", "Cat", "1/2/2024", "ZZ99XX")))

	t.Run("by date", func(t *testing.T) {
		got, err := l.FilterByDate(ctx, "1/1/2024")
		require.NoError(t, err)
		require.Len(t, got, 2)

		got, err = l.FilterByDate(ctx, "1/2/2024")
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, err = l.FilterByDate(ctx, "1/3/2024")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("by session requires both date and code", func(t *testing.T) {
		got, err := l.FilterBySession(ctx, "1/1/2024", "ZZ99XX")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "Ben", got[0].StudentName)
	})

	t.Run("find by student and code", func(t *testing.T) {
		got, found, err := l.Find(ctx, "s3", "ZZ99XX")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "Cat", got.StudentName)

		_, found, err = l.Find(ctx, "s3", "AB12CD")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("unique dates descend", func(t *testing.T) {
		dates, err := l.UniqueDates(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"1/2/2024", "1/1/2024"}, dates)
	})
}

func TestLedger_Clear(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(store.NewMemory())

	require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))
	require.NoError(t, l.Append(ctx, rec("s2", "Ben", "1/1/2024", "AB12CD")))
	require.NoError(t, l.Clear(ctx))

	all, err := l.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestLedger_FailOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupt stored array reads as empty and reports", func(t *testing.T) {
		kv := store.NewMemory()
		require.NoError(t, kv.Set(ctx, store.KeyRecords, []byte("[{broken")))

		var reportedKey string
		l := ledger.New(kv, ledger.WithDiagnostic(func(key string, err error) {
			reportedKey = key
			require.Error(t, err)
		}))

		all, err := l.All(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
		require.Equal(t, store.KeyRecords, reportedKey)
	})

	t.Run("appending over corruption starts a fresh array", func(t *testing.T) {
		kv := store.NewMemory()
		require.NoError(t, kv.Set(ctx, store.KeyRecords, []byte("not json")))

		l := ledger.New(kv)
		require.NoError(t, l.Append(ctx, rec("s1", "Ann", "1/1/2024", "AB12CD")))

		all, err := l.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}
