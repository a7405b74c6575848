package classfile

import "testing"

func TestValidateFieldDescriptor(t *testing.T) {
	valid := []string{"I", "J", "F", "D", "Z", "B", "C", "S", "Ljava/lang/String;", "[I", "[[Ljava/lang/Object;"}
	for _, d := range valid {
		if err := ValidateFieldDescriptor(d); err != nil {
			t.Errorf("ValidateFieldDescriptor(%q) = %v, want nil", d, err)
		}
	}

	invalid := []string{"", "X", "L", "Ljava/lang/String", "[", "II"}
	for _, d := range invalid {
		if err := ValidateFieldDescriptor(d); err == nil {
			t.Errorf("ValidateFieldDescriptor(%q) = nil, want error", d)
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	md, err := ParseMethodDescriptor("(ILjava/lang/String;J)D")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	wantParams := []string{"I", "Ljava/lang/String;", "J"}
	if len(md.ParameterTypes) != len(wantParams) {
		t.Fatalf("ParameterTypes = %v, want %v", md.ParameterTypes, wantParams)
	}
	for i, p := range wantParams {
		if md.ParameterTypes[i] != p {
			t.Errorf("ParameterTypes[%d] = %q, want %q", i, md.ParameterTypes[i], p)
		}
	}
	if md.ReturnType != "D" {
		t.Errorf("ReturnType = %q, want D", md.ReturnType)
	}
	if got := md.ArgumentSlots(); got != 4 { // I=1, String=1, J=2
		t.Errorf("ArgumentSlots() = %d, want 4", got)
	}
}

func TestParseMethodDescriptor_Void(t *testing.T) {
	md, err := ParseMethodDescriptor("()V")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(md.ParameterTypes) != 0 {
		t.Errorf("expected no parameters, got %v", md.ParameterTypes)
	}
	if md.ReturnType != "V" {
		t.Errorf("ReturnType = %q, want V", md.ReturnType)
	}
}

func TestParseMethodDescriptor_Malformed(t *testing.T) {
	cases := []string{"", "I)V", "(IV", "(I)"}
	for _, d := range cases {
		if _, err := ParseMethodDescriptor(d); err == nil {
			t.Errorf("ParseMethodDescriptor(%q) = nil error, want error", d)
		}
	}
}
