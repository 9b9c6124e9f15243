package ai

import (
	"reflect"
	"testing"
)

type sampleEntity struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []sampleEntity
		wantErr bool
	}{
		{
			name:  "standard json",
			input: `[{"name":"北京","type":"location","start":0,"end":6}]`,
			want:  []sampleEntity{{Name: "北京", Type: "location", Start: 0, End: 6}},
		},
		{
			name:  "double encoded",
			input: `"[{\"name\":\"a\",\"type\":\"t\",\"start\":1,\"end\":2}]"`,
			want:  []sampleEntity{{Name: "a", Type: "t", Start: 1, End: 2}},
		},
		{
			name:  "markdown fenced",
			input: "```json\n[{\"name\":\"a\",\"type\":\"t\",\"start\":0,\"end\":1}]\n```",
			want:  []sampleEntity{{Name: "a", Type: "t", Start: 0, End: 1}},
		},
		{
			name:  "repairable json",
			input: `[{name: "a", type: "t", start: 0, end: 1},]`,
			want:  []sampleEntity{{Name: "a", Type: "t", Start: 0, End: 1}},
		},
		{
			name:    "hopeless input",
			input:   `the model refused to answer`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []sampleEntity
			err := UnmarshalFlexible(tt.input, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
