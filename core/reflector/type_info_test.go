package reflector

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name string
}

type anotherStruct struct {
	Value int
}

const pkg = "github.com/codewandler/pactor/core/reflector"

func TestTypeInfoOf(t *testing.T) {
	ti := TypeInfoOf(testStruct{Name: "test"})
	require.Equal(t, pkg+".testStruct", ti.Name)
	require.Equal(t, "testStruct", ti.Type.Name())
	require.False(t, ti.Pointer)
}

func TestTypeInfoOf_Pointer(t *testing.T) {
	ti := TypeInfoOf(&testStruct{Name: "test"})
	require.Equal(t, pkg+".testStruct", ti.Name)
	require.NotEqual(t, reflect.Pointer, ti.Type.Kind())
	require.True(t, ti.Pointer)
}

func TestTypeInfoFor(t *testing.T) {
	require.Equal(t, pkg+".testStruct", TypeInfoFor[testStruct]().Name)
	require.Equal(t, pkg+".testStruct", TypeInfoFor[*testStruct]().Name)
	require.Equal(t, pkg+".anotherStruct", TypeInfoFor[anotherStruct]().Name)
}

func TestTypeInfoFor_predeclared(t *testing.T) {
	require.Equal(t, "uint32", TypeInfoFor[uint32]().Name)
	require.Equal(t, "[]int", TypeInfoFor[[]int]().Name)
}

func TestTypeInfoOf_Nil(t *testing.T) {
	require.Equal(t, TypeInfo{}, TypeInfoOf(nil))
}

func TestTypeInfo_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, pkg+".testStruct", TypeInfoFor[testStruct]().Name)
		}()
	}
	wg.Wait()
}
