// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const (
	addrX = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"
	addrY = "7777777777777777777777777777777777777777777777777774MSJUVU"
	addrZ = "EGMKPN3CSA6PVIJ3IOLFAQBYL6YGQ54EIWZZRSUMIPTSRX32QRJXSUPG5U"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "accounts.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	return r
}

func TestAddAndGet(t *testing.T) {
	r := newTestRegistry(t)

	rec := NewStandardAccount(addrX, "Main")
	if err := r.Add(rec); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := r.Get(addrX)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Kind != KindStandard || got.Label != "Main" {
		t.Errorf("Get() = %+v", got)
	}
	if got.ID == "" {
		t.Error("record missing generated id")
	}

	byID, err := r.GetByID(got.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Address != addrX {
		t.Errorf("GetByID() address = %s, want %s", byID.Address, addrX)
	}

	if err := r.Add(NewWatchOnlyAccount(addrX, "Dup")); !errors.Is(err, ErrAddressExists) {
		t.Errorf("duplicate Add() error = %v, want ErrAddressExists", err)
	}
	if _, err := r.Get(addrY); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestAddValidation(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		rec  *AccountRecord
	}{
		{"bad address", NewStandardAccount("NOTANADDRESS", "x")},
		{"bad checksum", NewStandardAccount(addrX[:57]+"A", "x")},
		{"unknown kind", &AccountRecord{ID: "i", Address: addrX, Kind: Kind("weird")}},
		{"hardware without device", &AccountRecord{ID: "i", Address: addrX, Kind: KindHardwareDevice}},
		{"remote without endpoint", &AccountRecord{ID: "i", Address: addrX, Kind: KindRemoteSigner}},
		{"rekeyed without authority", &AccountRecord{ID: "i", Address: addrX, Kind: KindRekeyed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Add(tt.rec); err == nil {
				t.Error("Add() should have failed")
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Add(NewStandardAccount(addrX, "Main")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, _ := r.Get(addrX)
	got.Label = "tampered"

	again, _ := r.Get(addrX)
	if again.Label != "Main" {
		t.Error("Get() must return a copy, not the stored record")
	}
}

func TestPersistenceAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")

	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if err := r.Add(NewHardwareAccount(addrY, "Ledger", "dev1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	r2, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("second LoadRegistry() error = %v", err)
	}
	got, err := r2.Get(addrY)
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if got.Kind != KindHardwareDevice || got.DeviceID != "dev1" {
		t.Errorf("reloaded record = %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("registry file mode = %o, want 0600", perm)
	}
}

func TestListSorted(t *testing.T) {
	r := newTestRegistry(t)
	for _, rec := range []*AccountRecord{
		NewStandardAccount(addrZ, "zed"),
		NewStandardAccount(addrX, "alpha"),
		NewWatchOnlyAccount(addrY, "beta"),
	} {
		if err := r.Add(rec); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(list))
	}
	wantLabels := []string{"alpha", "beta", "zed"}
	for i, want := range wantLabels {
		if list[i].Label != want {
			t.Errorf("List()[%d].Label = %s, want %s", i, list[i].Label, want)
		}
	}
}

func TestRenameAndDelete(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Add(NewStandardAccount(addrX, "old")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := r.Rename(addrX, "new"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	got, _ := r.Get(addrX)
	if got.Label != "new" {
		t.Errorf("label = %s, want new", got.Label)
	}

	if err := r.Delete(addrX); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if r.Has(addrX) {
		t.Error("Has() = true after delete")
	}
	if err := r.Delete(addrX); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestKindTransitions(t *testing.T) {
	t.Run("watch-only upgrade", func(t *testing.T) {
		r := newTestRegistry(t)
		if err := r.Add(NewWatchOnlyAccount(addrX, "w")); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if err := r.UpgradeWatchOnly(addrX); err != nil {
			t.Fatalf("UpgradeWatchOnly() error = %v", err)
		}
		got, _ := r.Get(addrX)
		if got.Kind != KindStandard {
			t.Errorf("kind = %s, want %s", got.Kind, KindStandard)
		}
		// Already standard: not a legal transition again.
		if err := r.UpgradeWatchOnly(addrX); !errors.Is(err, ErrKindTransition) {
			t.Errorf("second UpgradeWatchOnly() error = %v, want ErrKindTransition", err)
		}
	})

	t.Run("rekey round trip", func(t *testing.T) {
		r := newTestRegistry(t)
		if err := r.Add(NewStandardAccount(addrX, "s")); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if err := r.MarkRekeyed(addrX, addrY, true); err != nil {
			t.Fatalf("MarkRekeyed() error = %v", err)
		}
		got, _ := r.Get(addrX)
		if got.Kind != KindRekeyed || got.AuthorityAddress != addrY || !got.CanSignLocally {
			t.Errorf("record after rekey = %+v", got)
		}

		// Authority may move again while already rekeyed.
		if err := r.MarkRekeyed(addrX, addrZ, false); err != nil {
			t.Fatalf("re-MarkRekeyed() error = %v", err)
		}
		got, _ = r.Get(addrX)
		if got.AuthorityAddress != addrZ || got.CanSignLocally {
			t.Errorf("record after second rekey = %+v", got)
		}

		if err := r.ClearRekeyed(addrX); err != nil {
			t.Fatalf("ClearRekeyed() error = %v", err)
		}
		got, _ = r.Get(addrX)
		if got.Kind != KindStandard || got.AuthorityAddress != "" || got.CanSignLocally {
			t.Errorf("record after un-rekey = %+v", got)
		}
	})

	t.Run("disallowed transitions", func(t *testing.T) {
		r := newTestRegistry(t)
		if err := r.Add(NewHardwareAccount(addrX, "h", "dev1")); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if err := r.MarkRekeyed(addrX, addrY, false); !errors.Is(err, ErrKindTransition) {
			t.Errorf("MarkRekeyed(hardware) error = %v, want ErrKindTransition", err)
		}
		if err := r.ClearRekeyed(addrX); !errors.Is(err, ErrKindTransition) {
			t.Errorf("ClearRekeyed(hardware) error = %v, want ErrKindTransition", err)
		}
		if err := r.UpgradeWatchOnly(addrX); !errors.Is(err, ErrKindTransition) {
			t.Errorf("UpgradeWatchOnly(hardware) error = %v, want ErrKindTransition", err)
		}
	})
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if err := r.Add(NewStandardAccount(addrX, "first")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Simulate an external writer replacing the file.
	other, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if err := other.Add(NewStandardAccount(addrY, "second")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if r.Has(addrY) {
		t.Fatal("registry saw external edit before reload")
	}
	if err := r.reload(); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	if !r.Has(addrY) {
		t.Error("reload() did not pick up external edit")
	}
}

func TestDisplayName(t *testing.T) {
	labeled := NewStandardAccount(addrX, "Main")
	if got := labeled.DisplayName(); got != "Main" {
		t.Errorf("DisplayName() = %s, want Main", got)
	}
	unlabeled := NewStandardAccount(addrX, "")
	if got := unlabeled.DisplayName(); got != "AAAA..HFKQ" {
		t.Errorf("DisplayName() = %s, want AAAA..HFKQ", got)
	}
}
