package querycache

import "testing"

type row struct {
	id   string
	name string
}

func (r row) GetID() string { return r.id }

var key = Key{Scope: "leads"}

func TestGetSet(t *testing.T) {
	c := New[row]()
	if _, _, ok := c.Get(key); ok {
		t.Fatal("empty cache returned an entry")
	}
	c.Set(key, []row{{"1", "a"}})
	rows, fresh, ok := c.Get(key)
	if !ok || !fresh || len(rows) != 1 {
		t.Fatalf("Get = %v %v %v", rows, fresh, ok)
	}
	rows[0].name = "mutated"
	again, _, _ := c.Get(key)
	if again[0].name != "a" {
		t.Error("Get must return a copy")
	}
}

func TestMergeDoesNotInvalidate(t *testing.T) {
	c := New[row]()
	c.Set(key, []row{{"1", "a"}, {"2", "b"}})
	other := Key{Scope: "leads", Search: "b"}
	c.Set(other, []row{{"2", "b"}})
	c.Set(Key{Scope: "devis"}, []row{{"9", "z"}})

	c.Merge("leads", Prepend(row{"3", "c"}))
	rows, fresh, _ := c.Get(key)
	if !fresh {
		t.Error("merge must not mark the entry stale")
	}
	if len(rows) != 3 || rows[0].id != "3" {
		t.Errorf("prepend failed: %v", rows)
	}
	if rows, _, _ := c.Get(other); len(rows) != 2 {
		t.Errorf("merge must reach every entry of the scope: %v", rows)
	}
	if rows, _, _ := c.Get(Key{Scope: "devis"}); len(rows) != 1 {
		t.Errorf("merge leaked into another scope: %v", rows)
	}
	if c.Invalidations("leads") != 0 {
		t.Error("merge counted as invalidation")
	}
}

func TestReplaceAndRemove(t *testing.T) {
	c := New[row]()
	c.Set(key, []row{{"1", "a"}, {"2", "b"}, {"3", "c"}})
	c.Merge("leads", Replace(row{"2", "B"}))
	rows, _, _ := c.Get(key)
	if rows[1].name != "B" || len(rows) != 3 {
		t.Errorf("replace failed: %v", rows)
	}
	c.Merge("leads", Remove[row]("2"))
	rows, _, _ = c.Get(key)
	if len(rows) != 2 || rows[0].id != "1" || rows[1].id != "3" {
		t.Errorf("remove must drop exactly the target: %v", rows)
	}
}

func TestInvalidate(t *testing.T) {
	c := New[row]()
	c.Set(key, []row{{"1", "a"}})
	c.Set(Key{Scope: "devis"}, nil)

	var seen []string
	cancel := c.OnInvalidate(func(scope string) { seen = append(seen, scope) })

	c.Invalidate("leads")
	if _, fresh, ok := c.Get(key); !ok || fresh {
		t.Errorf("expected stale entry, fresh=%v ok=%v", fresh, ok)
	}
	if _, fresh, _ := c.Get(Key{Scope: "devis"}); !fresh {
		t.Error("invalidation leaked into another scope")
	}
	if c.Invalidations("leads") != 1 {
		t.Errorf("Invalidations = %d", c.Invalidations("leads"))
	}

	cancel()
	c.Invalidate("leads")
	if len(seen) != 1 || seen[0] != "leads" {
		t.Errorf("listener calls = %v", seen)
	}

	c.Set(key, []row{{"1", "a"}})
	if _, fresh, _ := c.Get(key); !fresh {
		t.Error("Set must store a fresh entry")
	}
}

func TestSetIfCurrent(t *testing.T) {
	c := New[row]()
	gen := c.Invalidations(key.Scope)
	c.Invalidate(key.Scope)
	if c.SetIfCurrent(key, []row{{"1", "old"}}, gen) {
		t.Fatal("rows fetched before an invalidation must not be stored")
	}
	if _, _, ok := c.Get(key); ok {
		t.Fatal("nothing should be cached")
	}
	gen = c.Invalidations(key.Scope)
	if !c.SetIfCurrent(key, []row{{"1", "new"}}, gen) {
		t.Fatal("current generation should store")
	}
	if _, fresh, _ := c.Get(key); !fresh {
		t.Error("stored rows should be fresh")
	}
}
