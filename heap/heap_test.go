package heap

import "testing"

func TestBasics(t *testing.T) {
	h := New(func(a, b int) bool {
		return a < b
	})
	h.Push(10)
	h.Push(4)
	h.Push(100)
	h.Push(8)
	h.Push(20)
	for _, i := range []int{4, 8, 10, 20, 100} {
		if top, found := h.Peek(); !found || top != i {
			t.Errorf("got %v, %v, want %v, true", top, found, i)
		}
		if top, found := h.Pop(); !found || top != i {
			t.Errorf("got %v, %v, want %v, true", top, found, i)
		}
	}
	if _, found := h.Peek(); found {
		t.Errorf("got %v, want false", found)
	}
	if _, found := h.Pop(); found {
		t.Errorf("got %v, want false", found)
	}
}

func TestPopIf(t *testing.T) {
	h := New(func(a, b int) bool {
		return a < b
	})
	h.Push(5)
	h.Push(1)
	if _, found := h.PopIf(func(top int) bool { return top < 1 }); found {
		t.Errorf("got %v, want false", found)
	}
	if top, found := h.PopIf(func(top int) bool { return top < 3 }); !found || top != 1 {
		t.Errorf("got %v, %v, want 1, true", top, found)
	}
	if h.Size() != 1 {
		t.Errorf("got %v, want 1", h.Size())
	}
}
