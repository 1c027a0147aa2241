// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-treasury.
//
// go-treasury is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package storage_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jeremyhahn/go-treasury/pkg/storage"
	"github.com/jeremyhahn/go-treasury/pkg/storage/memory"
)

func TestPaths(t *testing.T) {
	if got := storage.SharePath("abc", 7); got != "shares/abc/share-007.json" {
		t.Errorf("SharePath() = %q", got)
	}
	if got := storage.SharePath("abc", 255); got != "shares/abc/share-255.json" {
		t.Errorf("SharePath() = %q", got)
	}
	if got := storage.SplitPrefix("abc"); got != "shares/abc/" {
		t.Errorf("SplitPrefix() = %q", got)
	}
	if got := storage.SealedPath("root"); got != "sealed/root.json" {
		t.Errorf("SealedPath() = %q", got)
	}
}

func TestListSplitsAndSealed(t *testing.T) {
	b := memory.New()
	for _, k := range []string{
		storage.SharePath("b", 1),
		storage.SharePath("a", 1),
		storage.SharePath("a", 2),
		storage.SealedPath("root"),
		storage.SealedPath("backup"),
		"sealed/notes.txt",
	} {
		if err := b.Put(k, []byte("x"), nil); err != nil {
			t.Fatal(err)
		}
	}

	splits, err := storage.ListSplits(b)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(splits) != "[a b]" {
		t.Errorf("ListSplits() = %v", splits)
	}

	sealed, err := storage.ListSealed(b)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(sealed) != "[backup root]" {
		t.Errorf("ListSealed() = %v", sealed)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"shares/a/share-001.json", "sealed/root.json", "a..b", "x/..y/z"}
	for _, k := range valid {
		if err := storage.ValidateKey(k); err != nil {
			t.Errorf("ValidateKey(%q) = %v", k, err)
		}
	}
	invalid := []string{"", "..", "../x", "x/../../y", "/abs", "\\abs", "x\\..\\y", "nul\x00"}
	for _, k := range invalid {
		if err := storage.ValidateKey(k); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", k, err)
		}
	}
}
