package kv_test

import (
	"testing"

	"github.com/codewandler/pactor/ports/kv"
	"github.com/codewandler/pactor/ports/kv/kvtest"
)

func TestMemStore_Suite(t *testing.T) {
	kvtest.Run(t, func(*testing.T) kv.Store { return kv.NewMemStore() })
}
