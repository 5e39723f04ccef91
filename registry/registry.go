package registry

import (
	"slices"
	"sort"
	"sync"

	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/xlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "registry")

// Stats describes the registry content.
type Stats struct {
	TotalTools   int            `json:"totalTools" yaml:"totalTools"`
	EnabledTools int            `json:"enabledTools" yaml:"enabledTools"`
	Categories   map[string]int `json:"categories" yaml:"categories"`
	Tags         map[string]int `json:"tags" yaml:"tags"`
}

// Registry is a concurrent-safe tool registry.
// Tools are kept in registration order, the category and tag indices
// are always consistent with the registered tools.
//
// Tools returned by the registry are shared read-only copies,
// callers must not modify them.
type Registry struct {
	lock       sync.RWMutex
	tools      *orderedmap.OrderedMap[string, *tools.Tool]
	categories map[string]map[string]struct{}
	tags       map[string]map[string]struct{}
}

// New returns an empty registry
func New() *Registry {
	return &Registry{
		tools:      orderedmap.New[string, *tools.Tool](),
		categories: make(map[string]map[string]struct{}),
		tags:       make(map[string]map[string]struct{}),
	}
}

// Register validates and adds the tool.
// It returns *tools.ValidationError for malformed definition,
// or *tools.DuplicateToolError if the name is already registered.
// Either the tool and both index entries are added, or nothing is.
func (r *Registry) Register(tool *tools.Tool) error {
	if err := tools.Validate(tool); err != nil {
		return err
	}

	t := tool.Clone()

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.tools.Get(t.Name); ok {
		return &tools.DuplicateToolError{Name: t.Name}
	}

	r.tools.Set(t.Name, t)
	addToIndex(r.categories, t.Category, t.Name)
	for _, tag := range t.Tags {
		addToIndex(r.tags, tag, t.Name)
	}

	logger.KV(xlog.DEBUG,
		"status", "registered",
		"tool", t.Name,
		"category", t.Category,
		"tags", t.Tags,
	)
	return nil
}

// Unregister removes the tool and its index references.
// It returns false if the tool is not registered.
func (r *Registry) Unregister(name string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, ok := r.tools.Delete(name)
	if !ok {
		return false
	}

	removeFromIndex(r.categories, t.Category, name)
	for _, tag := range t.Tags {
		removeFromIndex(r.tags, tag, name)
	}

	logger.KV(xlog.DEBUG, "status", "unregistered", "tool", name)
	return true
}

// SetEnabled enables or disables the tool, keeping its registration position.
// It returns false if the tool is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, ok := r.tools.Get(name)
	if !ok {
		return false
	}
	if t.Enabled != enabled {
		// copy on write, readers may hold the previous value
		c := t.Clone()
		c.Enabled = enabled
		r.tools.Set(name, c)
	}
	return true
}

// Get returns the tool by name
func (r *Registry) Get(name string) (*tools.Tool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.tools.Get(name)
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.tools.Len()
}

// GetAllTools returns the tools in registration order
func (r *Registry) GetAllTools() []*tools.Tool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.filter(nil)
}

// GetEnabledTools returns the enabled tools in registration order
func (r *Registry) GetEnabledTools() []*tools.Tool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.filter(func(t *tools.Tool) bool {
		return t.Enabled
	})
}

// GetToolsByCategory returns the tools in the category, in registration order
func (r *Registry) GetToolsByCategory(category string) []*tools.Tool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	bucket := r.categories[category]
	if len(bucket) == 0 {
		return nil
	}
	return r.filter(func(t *tools.Tool) bool {
		_, ok := bucket[t.Name]
		return ok
	})
}

// GetToolsByTags returns the tools that carry every tag in the list,
// in registration order. An empty list returns no tools.
func (r *Registry) GetToolsByTags(tags []string) []*tools.Tool {
	if len(tags) == 0 {
		return nil
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	buckets := make([]map[string]struct{}, 0, len(tags))
	for _, tag := range tags {
		bucket := r.tags[tag]
		if len(bucket) == 0 {
			return nil
		}
		buckets = append(buckets, bucket)
	}
	// start from the smallest bucket
	sort.Slice(buckets, func(i, j int) bool {
		return len(buckets[i]) < len(buckets[j])
	})

	return r.filter(func(t *tools.Tool) bool {
		for _, bucket := range buckets {
			if _, ok := bucket[t.Name]; !ok {
				return false
			}
		}
		return true
	})
}

// Categories returns sorted list of categories
func (r *Registry) Categories() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return sortedKeys(r.categories)
}

// Tags returns sorted list of tags
func (r *Registry) Tags() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return sortedKeys(r.tags)
}

// Stats returns counts derived from the index sizes
func (r *Registry) Stats() Stats {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s := Stats{
		TotalTools: r.tools.Len(),
		Categories: make(map[string]int, len(r.categories)),
		Tags:       make(map[string]int, len(r.tags)),
	}
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Enabled {
			s.EnabledTools++
		}
	}
	for k, v := range r.categories {
		s.Categories[k] = len(v)
	}
	for k, v := range r.tags {
		s.Tags[k] = len(v)
	}
	return s
}

// filter must be called under the lock
func (r *Registry) filter(accept func(*tools.Tool) bool) []*tools.Tool {
	list := make([]*tools.Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		if accept == nil || accept(pair.Value) {
			list = append(list, pair.Value)
		}
	}
	return list
}

func addToIndex(index map[string]map[string]struct{}, key, name string) {
	bucket, ok := index[key]
	if !ok {
		bucket = make(map[string]struct{})
		index[key] = bucket
	}
	bucket[name] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, name string) {
	bucket, ok := index[key]
	if !ok {
		return
	}
	delete(bucket, name)
	if len(bucket) == 0 {
		delete(index, key)
	}
}

func sortedKeys(index map[string]map[string]struct{}) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
