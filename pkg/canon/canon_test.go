package canon

import "testing"

// verify that two structurally equal objects with differently ordered
// keys marshal to the same canonical bytes.
func TestMarshalOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"y": 2, "z": 1}, "a": 2, "b": 1}

	encA, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	encB, err := Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(encA) != string(encB) {
		t.Fatalf("expected identical canonical encodings, got %s vs %s", encA, encB)
	}
}

// verify that array element order is preserved.
func TestMarshalPreservesArrayOrder(t *testing.T) {
	raw, err := Marshal(map[string]interface{}{"list": []interface{}{3, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"list":[3,1,2]}`
	if string(raw) != want {
		t.Fatalf("got %s, want %s", raw, want)
	}
}

// verify that Canonicalize re-sorts an already-encoded document.
func TestCanonicalizeReordersKeys(t *testing.T) {
	raw := []byte(`{"z":1,"a":2}`)
	got, err := Canonicalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":2,"z":1}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
