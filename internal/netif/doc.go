// Package netif implements the simulated network interface: a fixed-capacity
// receive ring with drop-on-full backpressure.
//
// The ring is a single-lock circular buffer of Packet slots. Producers call
// Receive; when the ring is full the packet is counted as dropped and the
// producer is never blocked. Consumers call Pop. Packet ids come from a
// xorshift64 generator seeded at ring creation, and each packet carries an
// FNV-1a sum of its payload taken at receive time.
package netif
