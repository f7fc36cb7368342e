package csvout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/casetrail/casetrail/internal/model"
)

func labeledRecord(id, ts, msg, approach, consent string) *model.Record {
	r := model.NewRecord()
	r.Set(model.FieldCorrelationID, id)
	r.Set(model.FieldTimestamp, ts)
	r.Set(model.FieldMessage, msg)
	r.Set(model.FieldApproach, approach)
	r.Set(model.FieldConsent, consent)
	return r
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2021-03-29T12:00:00.000Z_abc", "2021-03-29T12_00_00.000Z_abc"},
		{"plain", "plain"},
		{`a/b\c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupFilenameDeterministic(t *testing.T) {
	a := GroupFilename("2021-03-29T12:00:00.000Z", "case:1")
	b := GroupFilename("2021-03-29T12:00:00.000Z", "case:1")
	if a != b {
		t.Errorf("filenames differ: %q vs %q", a, b)
	}
	if a != "2021-03-29T12_00_00.000Z_case_1.csv" {
		t.Errorf("filename = %q", a)
	}
}

func TestWriteGroup(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	records := []*model.Record{
		labeledRecord("abc", "2021-03-29T12:00:00.000Z", "first", "embedded", "not available"),
		labeledRecord("abc", "2021-03-29T12:00:01.000Z", "second, with comma", "embedded", "GET_ACCOUNTS"),
	}
	fieldnames := model.OrderedFieldnames([]string{"correlationId", "timestamp", "message"})

	if err := w.WriteGroup("abc", records, fieldnames); err != nil {
		t.Fatalf("WriteGroup: %v", err)
	}

	path := filepath.Join(dir, "2021-03-29T12_00_00.000Z_abc.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	want := "correlationId,timestamp,message,approach,consent\n" +
		"abc,2021-03-29T12:00:00.000Z,first,embedded,not available\n" +
		"abc,2021-03-29T12:00:01.000Z,\"second, with comma\",embedded,GET_ACCOUNTS\n"
	if string(data) != want {
		t.Errorf("file content:\n%s\nwant:\n%s", data, want)
	}
}

func TestWriteGroupEmptyGroupErrors(t *testing.T) {
	w := NewWriter(t.TempDir())
	if err := w.WriteGroup("abc", nil, []string{"correlationId"}); err == nil {
		t.Error("expected error for empty group")
	}
}

func TestOrderedFieldnamesRelocatesMessage(t *testing.T) {
	got := model.OrderedFieldnames([]string{"correlationId", "message", "timestamp", "source"})
	want := []string{"correlationId", "timestamp", "source", "message", "approach", "consent"}
	if len(got) != len(want) {
		t.Fatalf("fieldnames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fieldnames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
