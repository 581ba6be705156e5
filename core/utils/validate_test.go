package utils

import "testing"

func TestValidateHandle(t *testing.T) {
	for _, handle := range []string{"admin", "org.user", "a-b_c", "abc"} {
		if err := ValidateHandle(handle); err != nil {
			t.Errorf("ValidateHandle(%q) = %v", handle, err)
		}
	}
	for _, handle := range []string{"", "ab", "has space", "über", "way!bad", string(make([]byte, 40))} {
		if err := ValidateHandle(handle); err == nil {
			t.Errorf("ValidateHandle(%q) accepted", handle)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Adequate1password"); err != nil {
		t.Errorf("good password rejected: %v", err)
	}
	for _, pw := range []string{"", "short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere", "has space1A7890"} {
		if err := ValidatePassword(pw); err == nil {
			t.Errorf("ValidatePassword(%q) accepted", pw)
		}
	}
}
