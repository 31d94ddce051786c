package ocspguard

import (
	"testing"
)

func TestUnitFileStoreGetMissingKeyReturnsNil(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStoreAt() error = %v", err)
	}
	data, err := store.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if data != nil {
		t.Errorf("Get() = %v, want nil", data)
	}
}

func TestUnitFileStorePutThenGetRoundTrips(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStoreAt() error = %v", err)
	}
	want := []byte(`{"abc":"ZGVm"}`)
	if err := store.Put("snapshot", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get("snapshot")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Get() = %s, want %s", got, want)
	}
}

func TestUnitFileStorePutOverwrites(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStoreAt() error = %v", err)
	}
	if err := store.Put("k", []byte("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put("k", []byte("second")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get() = %s, want second", got)
	}
}

func TestUnitMarshalUnmarshalSnapshotRoundTrips(t *testing.T) {
	entries := map[string][]byte{
		"fp1": []byte{0x01, 0x02, 0x03},
		"fp2": []byte{},
	}
	data, err := marshalSnapshot(entries)
	if err != nil {
		t.Fatalf("marshalSnapshot() error = %v", err)
	}
	got, err := unmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("unmarshalSnapshot() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(entries))
	}
	for k, v := range entries {
		gv, ok := got[k]
		if !ok {
			t.Errorf("missing key %q", k)
			continue
		}
		if string(gv) != string(v) {
			t.Errorf("got[%q] = %v, want %v", k, gv, v)
		}
	}
}

func TestUnitUnmarshalSnapshotEmptyData(t *testing.T) {
	got, err := unmarshalSnapshot(nil)
	if err != nil {
		t.Fatalf("unmarshalSnapshot() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}
