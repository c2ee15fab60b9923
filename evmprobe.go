// Package evmprobe reads from and writes to EVM contracts whose exact
// function surface is only partially known.
//
// The package provides three pieces that sit between a caller and a
// JSON-RPC node:
//   - An ABI codec for a small, fixed set of types (uint8, uint256,
//     address, bool, string)
//   - Exact conversion between raw token units and decimal amounts
//   - A probe resolver that tries an ordered list of candidate functions
//     until one answers
//
// # Basic Usage
//
// Describe functions and encode call-data:
//
//	balanceOf := evmprobe.MustFunction("balanceOf",
//	    []string{evmprobe.TypeAddress}, []string{evmprobe.TypeUint256})
//
//	data, err := evmprobe.Encode(balanceOf, owner)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ret, err := client.CallContract(ctx, token, data)
//	...
//	values, err := evmprobe.Decode(balanceOf, ret)
//
// # Probing
//
// When a contract may spell a capability several ways, list the spellings
// in a CandidateSet and let the Resolver pick the first that works:
//
//	resolver := evmprobe.NewResolver(client)
//	pot := resolver.Resolve(ctx, game, evmprobe.PotDirect).Uint()
//
// Read capabilities never fail: when every candidate fails, numeric reads
// fall back to zero and bool/address reads report "unknown". Write
// capabilities (Resolver.Transact) fail with *NoMatchingFunctionError.
//
// # Amounts
//
//	raw, err := evmprobe.ToRaw(big.NewRat(15, 10), 6) // 1500000
//	human := evmprobe.ToHuman(raw, 6)                  // 3/2
//
// The node client lives in package chain and the signing pipeline in
// package transact.
package evmprobe
