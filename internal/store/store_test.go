package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"timekeeper/internal/apperr"
	"timekeeper/test/testutil"

	"github.com/spf13/afero"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Load(ctx, KeyAlarms); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for fresh store, got %v", err)
	}

	want := []item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	if err := SaveCollection(ctx, st, KeyAlarms, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := DecodeCollection[item](ctx, st, KeyAlarms)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected round trip: %+v", got)
	}

	if err := SaveCollection[item](ctx, st, KeyAlarms, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, err = DecodeCollection[item](ctx, st, KeyAlarms)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil collection, got %+v err=%v", got, err)
	}

	if _, err := st.Load(ctx, KeyTimers); !errors.Is(err, ErrNotFound) {
		t.Fatalf("keys must be independent, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	exerciseStore(t, st)
	if st.Revision(KeyAlarms) != 2 {
		t.Fatalf("expected 2 saves, got %d", st.Revision(KeyAlarms))
	}
}

func TestFileStoreOnMemFs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	st, err := NewFileStore(fs, "/data")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, st)

	exists, err := afero.Exists(fs, "/data/alarm-clock-alarms.json")
	if err != nil || !exists {
		t.Fatalf("expected snapshot file, exists=%v err=%v", exists, err)
	}
	if tmp, _ := afero.Exists(fs, "/data/alarm-clock-alarms.json.tmp"); tmp {
		t.Fatalf("temp file must not remain after save")
	}
	if _, err := st.Load(context.Background(), "../escape"); err == nil {
		t.Fatalf("expected invalid key error")
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "timekeeper.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestDecodeCollectionCorruptAndAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewMemoryStore()
	if err := st.Save(ctx, KeyTimers, []byte("{not json")); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := DecodeCollection[item](ctx, st, KeyTimers)
	if !apperr.Is(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	items, err := DecodeCollection[item](ctx, st, KeyAlarms)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("absent key must decode to empty collection, got %+v err=%v", items, err)
	}
}

func TestNATSStoreIntegration(t *testing.T) {
	srv := testutil.StartNATS(t)

	st, err := NewNATSStore(NATSSettings{URL: []string{srv.URL}, Bucket: "timekeeper_test"})
	if err != nil {
		t.Fatalf("new nats store: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)
}
