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

// Package secretsharing implements Shamir's Secret Sharing Scheme.
//
// Shamir's Secret Sharing is a cryptographic algorithm that divides a secret
// into N shares, where any M shares (threshold) can reconstruct the original
// secret, but M-1 or fewer shares reveal absolutely no information about the
// secret. This is achieved through polynomial interpolation in a finite field.
//
// # Mathematical Foundation
//
// The scheme works by treating the secret as the constant term (a0) of a
// polynomial of degree M-1:
//
//	p(x) = a0 + a1*x + a2*x^2 + ... + a(M-1)*x^(M-1)
//
// Random coefficients a1 through a(M-1) are generated, and N shares are
// created by evaluating the polynomial at N distinct points. The secret
// can be recovered by interpolating the polynomial at x=0 using any M shares.
//
// All arithmetic is performed in the finite field GF(2^8) (also known as
// GF(256)), where addition is XOR and multiplication uses logarithm tables
// for efficiency.
//
// # Security Properties
//
// M-1 shares reveal no information about the secret. Coefficients are read
// from crypto/rand independently for every byte position and every call, so
// splitting the same secret twice yields unrelated share sets. Shares carry
// no integrity data of their own; the sharerecord package adds a checksum
// and the recovery package validates the reconstructed secret.
//
// # Usage Example
//
//	// 3-of-5: any 3 shares reconstruct
//	shares, err := secretsharing.Split([]byte("my secret data"), 3, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Distribute shares to different parties...
//
//	secret, err := secretsharing.Combine([]secretsharing.Share{shares[0], shares[2], shares[4]}, 3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Performance
//
// Field arithmetic comes from the gf256 package. Splitting is O(N * M * S)
// for S secret bytes. Combining computes the Lagrange basis once per share
// set in O(M^2) and then spends O(M * S) on the secret bytes.
//
// # Constraints
//
//   - Threshold M must satisfy: 2 <= M <= N <= 255
//   - Secret size is limited only by available memory
//   - Share ids are bytes (1-255), id 0 is the secret itself
//   - Combine uses the first M shares in the order supplied
//
// # References
//
// - Shamir, Adi (1979). "How to Share a Secret"
// - Finite field arithmetic: GF(2^8) with AES polynomial (0x11B)
package secretsharing
