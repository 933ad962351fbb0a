package items

import "time"

// Mutator edits a working copy of an item inside ChangeItem
type Mutator struct {
	item *Item
}

// NewMutator wraps a copy of item
func NewMutator(item *Item) *Mutator {
	return &Mutator{item: item.Clone()}
}

// SetTitle replaces the title
func (m *Mutator) SetTitle(title string) {
	m.item.Content.Title = title
}

// SetText replaces the body text
func (m *Mutator) SetText(text string) {
	m.item.Content.Text = text
}

// AddItemAsRelationship adds a reference to other. Adding an existing
// relationship is a no-op.
func (m *Mutator) AddItemAsRelationship(other *Item) {
	if m.item.HasRelationshipWith(other) {
		return
	}
	m.item.Content.References = append(m.item.Content.References, Reference{
		UUID:        other.UUID,
		ContentType: other.ContentType,
	})
}

// RemoveItemAsRelationship drops any reference to other
func (m *Mutator) RemoveItemAsRelationship(other *Item) {
	refs := m.item.Content.References[:0]
	for _, ref := range m.item.Content.References {
		if ref.UUID != other.UUID {
			refs = append(refs, ref)
		}
	}
	m.item.Content.References = refs
}

// Result returns the mutated item with a fresh update timestamp
func (m *Mutator) Result() *Item {
	m.item.UpdatedAt = time.Now().UTC()
	return m.item
}
