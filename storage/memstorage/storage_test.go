package memstorage_test

import (
	"strconv"
	"testing"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/storage/memstorage"
	"github.com/karupanerura/taskguard/storage/storagetest"
)

func BenchmarkSetItem(b *testing.B) {
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = "key:" + strconv.Itoa(i)
	}
	b.Run("SingleBucket", func(b *testing.B) {
		storagetest.BenchmarkSetItem(b, memstorage.New(memstorage.WithBucketsSize(1)), keys)
	})
	b.Run("MultipleBucket", func(b *testing.B) {
		storagetest.BenchmarkSetItem(b, memstorage.New(), keys)
	})
}

func TestConsistency(t *testing.T) {
	t.Parallel()
	for i := range 7 {
		i := i
		t.Run(strconv.Itoa(i+1), func(t *testing.T) {
			t.Parallel()

			storagetest.TestConsistency(t, func() (taskguard.Storage, func()) {
				return memstorage.New(memstorage.WithBucketsSize(i + 1)), func() {}
			})
		})
	}
}

func TestKeyHash(t *testing.T) {
	t.Parallel()
	for i := range 4 {
		i := i
		t.Run(strconv.Itoa(i+1), func(t *testing.T) {
			t.Parallel()

			storagetest.TestConsistency(t, func() (taskguard.Storage, func()) {
				return memstorage.New(memstorage.WithBucketsSize(i+1), memstorage.WithKeyHash(func(key string) int {
					return len(key)
				})), func() {}
			})
		})
	}
}
