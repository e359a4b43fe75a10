// Package memstorage provides an in-memory taskguard.Storage.
//
// Keys are spread across buckets by hash so that concurrent writers to different keys
// rarely contend on the same mutex. The storage is the default fast tier of a cache stack.
package memstorage
