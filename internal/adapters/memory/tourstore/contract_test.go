package tourstore

import (
	"testing"

	"github.com/openhouse-labs/tour-scheduling-api/internal/adapters/contracttest"
	tourstoreport "github.com/openhouse-labs/tour-scheduling-api/internal/ports/out/tourstore"
)

func TestContract_MemoryTourStore(t *testing.T) {
	contracttest.RunTourStore(t, func(t *testing.T) (tourstoreport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}
