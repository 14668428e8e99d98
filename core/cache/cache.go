package cache

type Cache interface {
	Get(key string) (any, bool)
	Put(key string, val any)
	Delete(key string)
	Len() int
}

// Nop never retains anything.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (*Nop) Get(string) (any, bool) { return nil, false }
func (*Nop) Put(string, any)        {}
func (*Nop) Delete(string)          {}
func (*Nop) Len() int               { return 0 }

var _ Cache = (*Nop)(nil)
