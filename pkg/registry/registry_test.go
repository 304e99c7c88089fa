package registry

import (
	"fmt"
	"testing"
)

// entry stands in for the provider/tool values the agent registers.
type entry struct {
	Name        string
	Description string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	tests := []struct {
		name    string
		key     string
		item    entry
		wantErr bool
	}{
		{
			name: "register valid item",
			key:  "calculator",
			item: entry{Name: "calculator", Description: "arithmetic"},
		},
		{
			name:    "register item with empty name",
			key:     "",
			item:    entry{Name: "", Description: "unnamed"},
			wantErr: true,
		},
		{
			name:    "register duplicate item",
			key:     "calculator",
			item:    entry{Name: "calculator", Description: "second copy"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	want := entry{Name: "web_search", Description: "search the web"}
	if err := reg.Register("web_search", want); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := reg.Get("web_search")
	if !ok {
		t.Fatal("Get() ok = false for registered item")
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Error("Get() ok = true for unregistered item")
	}
}

func TestBaseRegistry_ListAndNamesSorted(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	for _, name := range []string{"word_count", "calculator", "current_time"} {
		if err := reg.Register(name, entry{Name: name}); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	wantNames := []string{"calculator", "current_time", "word_count"}
	names := reg.Names()
	if len(names) != len(wantNames) {
		t.Fatalf("Names() length = %d, want %d", len(names), len(wantNames))
	}
	for i, want := range wantNames {
		if names[i] != want {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want)
		}
	}

	items := reg.List()
	if len(items) != len(wantNames) {
		t.Fatalf("List() length = %d, want %d", len(items), len(wantNames))
	}
	for i, want := range wantNames {
		if items[i].Name != want {
			t.Errorf("List()[%d].Name = %q, want %q", i, items[i].Name, want)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	if err := reg.Register("fetch_url", entry{Name: "fetch_url"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.Remove("fetch_url"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if _, ok := reg.Get("fetch_url"); ok {
		t.Error("item still present after Remove()")
	}

	if err := reg.Remove("fetch_url"); err == nil {
		t.Error("Remove() of missing item should error")
	}
}

func TestBaseRegistry_CountAndClear(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("tool-%d", i)
		if err := reg.Register(name, entry{Name: name}); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}
	if reg.Count() != 3 {
		t.Errorf("Count() = %d, want 3", reg.Count())
	}

	reg.Clear()
	if reg.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", reg.Count())
	}
	if len(reg.List()) != 0 {
		t.Errorf("List() after Clear() length = %d, want 0", len(reg.List()))
	}
}

func TestBaseRegistry_Concurrency(t *testing.T) {
	reg := NewBaseRegistry[entry]()

	done := make(chan bool, 2)

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			name := fmt.Sprintf("concurrent-%d", i)
			_ = reg.Register(name, entry{Name: name})
		}
	}()

	go func() {
		defer func() { done <- true }()
		for i := 0; i < 100; i++ {
			reg.Get(fmt.Sprintf("concurrent-%d", i))
			reg.Count()
			reg.List()
		}
	}()

	<-done
	<-done

	if count := reg.Count(); count != 100 {
		t.Errorf("Count() after concurrent access = %d, want 100", count)
	}
}
