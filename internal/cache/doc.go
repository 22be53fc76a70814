// Package cache provides a generic bounded key/value cache combining LRU
// capacity eviction with lazy TTL expiry, instrumented with hit/miss/eviction
// counters. It wraps hashicorp/golang-lru for the recency structure and
// layers the TTL and stats semantics on top.
package cache
