package validation

import "testing"

type sample struct {
	Phone string `validate:"omitempty,phone"`
	Color string `validate:"omitempty,stagecolor"`
}

func TestCustomRules(t *testing.T) {
	v := New()

	valid := []sample{
		{Phone: "+919876543210"},
		{Phone: "1234567"},
		{Color: "#fff"},
		{Color: "#00AaFF"},
		{},
	}
	for _, s := range valid {
		if err := v.Struct(s); err != nil {
			t.Fatalf("expected valid %+v, got %v", s, err)
		}
	}

	invalid := []sample{
		{Phone: "123"},
		{Phone: "+12 345 6789"},
		{Color: "red"},
		{Color: "#12345"},
	}
	for _, s := range invalid {
		if err := v.Struct(s); err == nil {
			t.Fatalf("expected validation error for %+v", s)
		}
	}
}
