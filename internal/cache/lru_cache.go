package cache

import "container/list"

// lruList orders resident trees from most to least recently used.
type lruList struct {
	elems map[string]*list.Element
	order *list.List
}

func newLRUList() *lruList {
	return &lruList{
		elems: make(map[string]*list.Element),
		order: list.New(),
	}
}

// touch marks name as the most recently used.
func (l *lruList) touch(name string) {
	if elem, exists := l.elems[name]; exists {
		l.order.MoveToFront(elem)
		return
	}
	l.elems[name] = l.order.PushFront(name)
}

func (l *lruList) remove(name string) {
	if elem, exists := l.elems[name]; exists {
		l.order.Remove(elem)
		delete(l.elems, name)
	}
}

func (l *lruList) len() int {
	return l.order.Len()
}

// oldestFirst returns the names from least to most recently used.
func (l *lruList) oldestFirst() []string {
	names := make([]string, 0, l.order.Len())
	for elem := l.order.Back(); elem != nil; elem = elem.Prev() {
		names = append(names, elem.Value.(string))
	}
	return names
}
