package curriculum

import "github.com/google/btree"

// Ordering is the dense, stable sequence of lessons plus the UUID->index
// structure the Provider's O(1)/O(log N) contract (spec §4.5) needs.
// byUUID is a google/btree.BTree keyed on uuid, giving the "every lookup is
// O(1) or O(log N)" contract an O(log N) realization without a second
// linear scan to build it -- the same tree type the teacher uses to index
// its own per-container lookups elsewhere in runsc.
type Ordering struct {
	order  []*Lesson
	byUUID *btree.BTree
}

type uuidIndex struct {
	uuid  string
	index int
}

func (a uuidIndex) Less(than btree.Item) bool {
	return a.uuid < than.(uuidIndex).uuid
}

func newOrdering(lessons []*Lesson) (*Ordering, error) {
	o := &Ordering{order: lessons, byUUID: btree.New(32)}
	for _, l := range lessons {
		item := uuidIndex{uuid: l.UUID, index: l.Index}
		if existing := o.byUUID.ReplaceOrInsert(item); existing != nil {
			return nil, duplicateUUIDError(l.UUID)
		}
	}
	return o, nil
}

func duplicateUUIDError(uuid string) error {
	return &duplicateUUIDErr{uuid: uuid}
}

type duplicateUUIDErr struct{ uuid string }

func (e *duplicateUUIDErr) Error() string {
	return "duplicate lesson uuid: " + e.uuid
}

func (o *Ordering) First() *Lesson {
	if len(o.order) == 0 {
		return nil
	}
	return o.order[0]
}

func (o *Ordering) Count() int { return len(o.order) }

func (o *Ordering) indexOf(uuid string) (int, bool) {
	item := o.byUUID.Get(uuidIndex{uuid: uuid})
	if item == nil {
		return 0, false
	}
	return item.(uuidIndex).index, true
}

func (o *Ordering) ByUUID(uuid string) *Lesson {
	idx, ok := o.indexOf(uuid)
	if !ok {
		return nil
	}
	return o.order[idx]
}

func (o *Ordering) Next(uuid string) *Lesson {
	idx, ok := o.indexOf(uuid)
	if !ok || idx+1 >= len(o.order) {
		return nil
	}
	return o.order[idx+1]
}

func (o *Ordering) Prev(uuid string) *Lesson {
	idx, ok := o.indexOf(uuid)
	if !ok || idx == 0 {
		return nil
	}
	return o.order[idx-1]
}

func (o *Ordering) Chapters() []string {
	var chapters []string
	seen := make(map[string]bool)
	for _, l := range o.order {
		if !seen[l.Chapter] {
			seen[l.Chapter] = true
			chapters = append(chapters, l.Chapter)
		}
	}
	return chapters
}
