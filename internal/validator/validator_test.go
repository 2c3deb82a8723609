package validator

import (
	"testing"
)

func TestSnapshotContractEnforcement(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid_snapshot",
			data: `{
				"terms": [
					{"name": "top.W", "type": ["Parameter"]},
					{"name": "top.q", "type": ["Reg"],
					 "msb": {"kind": "Operator", "op": "Minus", "operands": [
						{"kind": "Terminal", "name": "top.W"},
						{"kind": "IntConst", "value": "1"}]},
					 "lsb": {"kind": "IntConst", "value": "0"}}
				],
				"binds": [
					{"target": "top.W", "tree": {"kind": "IntConst", "value": "8"}, "param_kind": "parameter"},
					{"target": "top.q", "tree": {"kind": "Branch",
						"cond": {"kind": "Terminal", "name": "top.rst"},
						"true": {"kind": "IntConst", "value": "0"}},
					 "always": {"clock": "top.clk", "clock_edge": "posedge"}}
				]
			}`,
			wantErr: false,
		},
		{
			name:    "empty_snapshot",
			data:    `{"terms": [], "binds": []}`,
			wantErr: false,
		},
		{
			name:    "unknown_term_type",
			data:    `{"terms": [{"name": "x", "type": ["Signal"]}], "binds": []}`,
			wantErr: true,
		},
		{
			name:    "terminal_without_name",
			data:    `{"terms": [], "binds": [{"target": "x", "tree": {"kind": "Terminal"}}]}`,
			wantErr: true,
		},
		{
			name:    "unknown_node_kind",
			data:    `{"terms": [], "binds": [{"target": "x", "tree": {"kind": "Lambda"}}]}`,
			wantErr: true,
		},
		{
			name:    "unexpected_field",
			data:    `{"terms": [], "binds": [{"target": "x", "tree": {"kind": "IntConst", "value": "1"}, "line": 3}]}`,
			wantErr: true,
		},
		{
			name:    "bad_clock_edge",
			data:    `{"terms": [], "binds": [{"target": "x", "tree": {"kind": "IntConst", "value": "1"}, "always": {"clock_edge": "rising"}}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsListsPaths(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	data := map[string]interface{}{
		"terms": []interface{}{
			map[string]interface{}{"name": "", "type": []string{"Wire"}},
		},
		"binds": []interface{}{},
	}
	errs := v.ValidationErrors(data)
	if len(errs) == 0 {
		t.Fatalf("expected validation errors for an empty term name")
	}

	ok := map[string]interface{}{"terms": []interface{}{}, "binds": []interface{}{}}
	if errs := v.ValidationErrors(ok); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}
