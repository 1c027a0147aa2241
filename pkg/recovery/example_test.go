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

package recovery_test

import (
	"fmt"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-treasury/pkg/mnemonic"
	"github.com/jeremyhahn/go-treasury/pkg/recovery"
	"github.com/jeremyhahn/go-treasury/pkg/sharerecord"
)

func Example() {
	phrase := []byte("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")

	records, err := recovery.Export(phrase, secretsharing.ShareConfig{Threshold: 3, TotalShares: 5}, sharerecord.Metadata{Network: "mainnet"})
	if err != nil {
		panic(err)
	}

	// Any three custodians can recover the phrase.
	secret, err := recovery.Recover([]*sharerecord.Record{records[4], records[0], records[2]}, mnemonic.Validate)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(secret))

	_, err = recovery.Recover(records[:2], mnemonic.Validate)
	fmt.Println(err != nil)
	// Output:
	// abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about
	// true
}

func ExampleSession() {
	phrase := []byte("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	records, err := recovery.Export(phrase, secretsharing.ShareConfig{Threshold: 2, TotalShares: 3}, sharerecord.Metadata{Network: "testnet"})
	if err != nil {
		panic(err)
	}

	session := recovery.NewSession(recovery.WithPredicate(mnemonic.Validate))
	if err := session.Add(records[2]); err != nil {
		panic(err)
	}
	if err := session.Add(records[1]); err != nil {
		panic(err)
	}
	if _, err := session.Recover(); err != nil {
		panic(err)
	}
	fmt.Println(session.Used())
	// Output: [2 3]
}
