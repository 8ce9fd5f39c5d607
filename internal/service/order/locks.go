package order

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 64

// stripedLocks сериализует операции над одним заказом без карты мьютексов на каждый id.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = defaultLockStripes
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

// lock захватывает мьютекс полосы для key и возвращает функцию освобождения.
func (l *stripedLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
