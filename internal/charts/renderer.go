package charts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"spendwise/internal/cache"
	"spendwise/internal/core"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// Renderer caches rendered charts by the content they draw, so an unchanged
// dashboard is never re-rendered.
type Renderer struct {
	cache  *cache.LRU[[]byte]
	width  int
	height int
}

func NewRenderer(size int, ttl time.Duration) *Renderer {
	return &Renderer{
		cache:  cache.NewLRU[[]byte](size, ttl),
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Cache exposes the backing cache for periodic sweeping.
func (r *Renderer) Cache() *cache.LRU[[]byte] {
	return r.cache
}

func (r *Renderer) Pie(slices []core.CategoryAmount) ([]byte, error) {
	return r.cache.GetOrLoad(key("pie", slices), func() ([]byte, error) {
		return Pie(slices, r.width, r.height)
	})
}

func (r *Renderer) Line(series []core.MonthAmount) ([]byte, error) {
	return r.cache.GetOrLoad(key("line", series), func() ([]byte, error) {
		return Line(series, r.width, r.height)
	})
}

func key(kind string, v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return kind + ":" + hex.EncodeToString(sum[:])
}
