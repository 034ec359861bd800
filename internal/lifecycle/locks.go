package lifecycle

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// keyedMutex serializes lifecycle operations per entity, mirroring the
// row-level locks the store takes inside the transaction. On SQLite, which
// has no SELECT ... FOR UPDATE, this mutex is the only serialization.
type keyedMutex struct {
	mus sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.mus.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func poKey(id int64) string  { return fmt.Sprintf("po:%d", id) }
func rfqKey(id int64) string { return fmt.Sprintf("rfq:%d", id) }

// lockForUpdate applies an exclusive row lock on stores that support it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
