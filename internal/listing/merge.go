package listing

// ItemMap is an insertion-ordered map of items keyed by ID.
//
// The merge functions below treat ItemMaps as immutable values and return new
// maps; the Manager swaps whole snapshots so observers never see a partial
// merge.
type ItemMap struct {
	ids  []string
	byID map[string]Item
}

// NewItemMap returns an empty ordered item map.
func NewItemMap() *ItemMap {
	return &ItemMap{byID: make(map[string]Item)}
}

// Len returns the number of items.
func (m *ItemMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// IDs returns the item IDs in insertion order.
func (m *ItemMap) IDs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Get returns the item with the given ID.
func (m *ItemMap) Get(id string) (Item, bool) {
	if m == nil {
		return Item{}, false
	}
	it, ok := m.byID[id]
	return it, ok
}

// First returns the first item in order, if any.
func (m *ItemMap) First() (Item, bool) {
	if m == nil || len(m.ids) == 0 {
		return Item{}, false
	}
	return m.byID[m.ids[0]], true
}

// Items returns all items in insertion order.
func (m *ItemMap) Items() []Item {
	if m == nil {
		return nil
	}
	out := make([]Item, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id])
	}
	return out
}

// add appends an item, ignoring items whose ID is already present.
func (m *ItemMap) add(it Item) {
	if it.ID == "" {
		return
	}
	if _, ok := m.byID[it.ID]; ok {
		return
	}
	m.ids = append(m.ids, it.ID)
	m.byID[it.ID] = it
}

// clone returns a shallow copy safe for independent mutation.
func (m *ItemMap) clone() *ItemMap {
	out := &ItemMap{
		ids:  make([]string, len(m.ids)),
		byID: make(map[string]Item, len(m.byID)),
	}
	copy(out.ids, m.ids)
	for k, v := range m.byID {
		out.byID[k] = v
	}
	return out
}

// Patch returns a copy of the map with fn applied to the item with the given
// ID. Reports false if the ID is not present.
func (m *ItemMap) Patch(id string, fn func(*Item)) (*ItemMap, bool) {
	if m == nil {
		return nil, false
	}
	it, ok := m.byID[id]
	if !ok {
		return m, false
	}
	fn(&it)
	it.ID = id // identity is not patchable
	out := m.clone()
	out.byID[id] = it
	return out, true
}

// KeyByID builds an ordered map from a page of items, dropping duplicate IDs
// after the first occurrence.
func KeyByID(items []Item) *ItemMap {
	m := NewItemMap()
	for _, it := range items {
		m.add(it)
	}
	return m
}

// MergeAppend returns existing items followed by the page's items. IDs
// already present keep their existing entry and position.
func MergeAppend(existing *ItemMap, page []Item) *ItemMap {
	if existing == nil {
		return KeyByID(page)
	}
	out := existing.clone()
	for _, it := range page {
		out.add(it)
	}
	return out
}

// MergePrepend returns the page's items followed by existing items. An ID
// present in both keeps the page's (newer) entry at its page position.
func MergePrepend(existing *ItemMap, page []Item) *ItemMap {
	out := KeyByID(page)
	if existing == nil {
		return out
	}
	for _, id := range existing.ids {
		if _, ok := out.byID[id]; ok {
			continue
		}
		out.ids = append(out.ids, id)
		out.byID[id] = existing.byID[id]
	}
	return out
}

// TruncateTail returns a map holding at most max items, dropping entries from
// the tail. A max of zero or less means no limit.
func TruncateTail(m *ItemMap, max int) *ItemMap {
	if m == nil || max <= 0 || m.Len() <= max {
		return m
	}
	out := &ItemMap{
		ids:  make([]string, max),
		byID: make(map[string]Item, max),
	}
	copy(out.ids, m.ids[:max])
	for _, id := range out.ids {
		out.byID[id] = m.byID[id]
	}
	return out
}
