// Package dlog solves discrete logarithms with small, bounded exponents
// over prime-order groups: given a group element x*G with 0 <= x < 2^bits
// for a configured bits <= 48, it recovers x. Lookup tables are built once
// (optionally persisted through the tableio package) and afterwards shared
// by any number of concurrent solvers. See the engine constructors
// (NewBsgsEngine and friends) and bsgs_test.go on how to use the library.
package dlog
