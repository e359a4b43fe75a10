// Package expiration provides staleness policies for cached entries.
//
// A policy decides whether an entry is past its freshness deadline. Stale entries are
// still served but trigger a refresh; removal of defunct entries is governed by the
// retention window alone and is not affected by the policy.
package expiration
