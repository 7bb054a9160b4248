package nvs

import "testing"

func TestMemStore_SetGetDelete(t *testing.T) {
	s := NewMemStore()
	if _, ok, _ := s.Get("reg0030"); ok {
		t.Fatalf("expected miss on empty store")
	}
	if err := s.Set("reg0030", []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get("reg0030")
	if err != nil || !ok {
		t.Fatalf("Get: v=%v ok=%v err=%v", v, ok, err)
	}
	if v[0] != 0x01 || v[1] != 0x02 {
		t.Fatalf("Get = % X", v)
	}
	if err := s.Delete("reg0030"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("reg0030"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestMemStore_ForEachPrefix(t *testing.T) {
	s := NewMemStore()
	_ = s.Set("reg0001", []byte{1})
	_ = s.Set("reg0002", []byte{2})
	_ = s.Set("mqtt_uri", []byte("broker"))

	var keys []string
	err := s.ForEach("reg", func(k string, v []byte) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 reg* entries", keys)
	}
}
