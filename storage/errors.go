package storage

import "errors"

var (
	ErrGet    = errors.New("unable to retrieve data from cache storage")
	ErrSet    = errors.New("unable to store data in cache storage")
	ErrRemove = errors.New("unable to remove data from cache storage")
	ErrClear  = errors.New("unable to clear cache storage")
	ErrKeys   = errors.New("unable to list keys of cache storage")
)
