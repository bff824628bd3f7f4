package records

import "testing"

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Event ID", "event_id"},
		{"Last-Accessed", "last_accessed"},
		{"  Command Line ", "command_line"},
		{"already_normal", "already_normal"},
	}

	for _, tt := range tests {
		if got := NormalizeColumn(tt.in); got != tt.want {
			t.Errorf("NormalizeColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRowLookup_FirstAliasWins(t *testing.T) {
	row := Row{
		"username":     Text("alice"),
		"account_name": Text("bob"),
	}

	v, ok := row.Lookup("account", "user", "username", "account_name")
	if !ok {
		t.Fatal("Lookup should find a value")
	}
	if v.Text() != "alice" {
		t.Errorf("expected first present alias to win, got %q", v.Text())
	}
}

func TestRowLookup_SkipsNull(t *testing.T) {
	row := Row{
		"user":     Null(),
		"username": Text("carol"),
	}

	v, ok := row.Lookup("user", "username")
	if !ok || v.Text() != "carol" {
		t.Errorf("Lookup should skip null values, got ok=%v value=%q", ok, v.Text())
	}

	if _, ok := row.Lookup("hostname"); ok {
		t.Error("Lookup should miss when no alias is present")
	}
}

func TestValueText(t *testing.T) {
	if got := Number(42).Text(); got != "42" {
		t.Errorf("integral number should render without decimals, got %q", got)
	}
	if got := Number(3.5).Text(); got != "3.5" {
		t.Errorf("got %q", got)
	}
	if got := Null().Text(); got != "" {
		t.Errorf("null should render empty, got %q", got)
	}
}

func TestDatasetCell_Bounds(t *testing.T) {
	ds := NewDataset("proc", []string{"Name", "PID"})
	ds.Append(Row{"name": Text("svchost.exe"), "pid": Number(123)})

	if _, ok := ds.Cell(-1, "name"); ok {
		t.Error("negative index should not resolve")
	}
	if _, ok := ds.Cell(1, "name"); ok {
		t.Error("out-of-range index should not resolve")
	}
	v, ok := ds.Cell(0, "Name")
	if !ok || v.Text() != "svchost.exe" {
		t.Errorf("Cell should normalize the column name, got ok=%v v=%q", ok, v.Text())
	}
}

func TestDatasetAppend_PadsMissingColumns(t *testing.T) {
	ds := NewDataset("fs", []string{"path", "size"})
	ds.Append(Row{"path": Text("/tmp/a")})

	v, ok := ds.Cell(0, "size")
	if !ok {
		t.Fatal("missing column should be padded")
	}
	if !v.IsNull() {
		t.Error("padded column should be null")
	}
}

func TestStoreOrder(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"zeta", "alpha", "midway"} {
		if err := s.Add(NewDataset(name, []string{"c"})); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	names := s.Names()
	want := []string{"zeta", "alpha", "midway"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want insertion order %v", names, want)
		}
	}

	// Replacing keeps position.
	if err := s.Add(NewDataset("alpha", []string{"d"})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Names()[1]; got != "alpha" {
		t.Errorf("replaced dataset should keep position, got %q", got)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}
