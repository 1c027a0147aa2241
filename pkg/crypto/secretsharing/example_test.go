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

package secretsharing_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/jeremyhahn/go-treasury/pkg/crypto/secretsharing"
)

// ExampleShamir demonstrates basic usage of Shamir's Secret Sharing.
func ExampleShamir() {
	// Any 3 of the 5 shares can reconstruct the secret
	shamir, err := secretsharing.NewShamir(&secretsharing.ShareConfig{
		Threshold:   3,
		TotalShares: 5,
	})
	if err != nil {
		log.Fatal(err)
	}

	secret := []byte("my secret key")
	shares, err := shamir.Split(secret)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Secret split into %d shares\n", len(shares))

	reconstructed, err := shamir.Combine(shares[:3])
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Secret reconstructed successfully: %v\n", string(reconstructed) == string(secret))

	// Output:
	// Secret split into 5 shares
	// Secret reconstructed successfully: true
}

// ExampleCombine shows reconstruction from a non-contiguous subset of
// key holders and the error reported when too few come forward.
func ExampleCombine() {
	masterKey := []byte("master-signing-key-abc123")

	shares, err := secretsharing.Split(masterKey, 3, 8)
	if err != nil {
		log.Fatal(err)
	}

	holders := []secretsharing.Share{shares[1], shares[4], shares[7]}
	key, err := secretsharing.Combine(holders, 3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Master key reconstructed: %v\n", string(key) == string(masterKey))

	_, err = secretsharing.Combine(holders[:2], 3)
	var ise *secretsharing.InsufficientSharesError
	if errors.As(err, &ise) {
		fmt.Printf("Need %d more share(s)\n", ise.Missing())
	}

	// Output:
	// Master key reconstructed: true
	// Need 1 more share(s)
}
