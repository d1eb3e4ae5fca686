package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/getsentry/opstractor/internal/optree"
	"github.com/getsentry/opstractor/internal/testutil"
)

func newOp(name string, parent *optree.Op, count uint64, d time.Duration) *optree.Op {
	op := optree.New(name, optree.ScopeFunction, parent, nil)
	op.AddInvocations(count, d)
	return op
}

// sampleDump is model->{A->{B->{C}, D}, E}.
func sampleDump() *optree.Op {
	a := newOp("A", nil, 2, 100)
	b := newOp("B", a, 2, 40)
	newOp("C", b, 4, 10)
	newOp("D", a, 2, 50)
	return optree.Aggregate("model", []*optree.Op{a, newOp("E", nil, 1, 7)})
}

func TestFlatten(t *testing.T) {
	want := []row{
		{Model: "model", Name: "A", InvocationCount: 2, TotalDurationNS: 100, ChildCount: 2, ChildrenDurationNS: 90, SequenceID: 0, ParentPath: "#/"},
		{Model: "model", Name: "B", InvocationCount: 2, TotalDurationNS: 40, ChildCount: 1, ChildrenDurationNS: 10, SequenceID: 1, ParentPath: "#/0/"},
		{Model: "model", Name: "C", InvocationCount: 4, TotalDurationNS: 10, SequenceID: 2, ParentPath: "#/0/1/"},
		{Model: "model", Name: "D", InvocationCount: 2, TotalDurationNS: 50, SequenceID: 3, ParentPath: "#/0/"},
		{Model: "model", Name: "E", InvocationCount: 1, TotalDurationNS: 7, SequenceID: 4, ParentPath: "#/"},
	}
	if diff := testutil.Diff(flatten(sampleDump()), want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestFlattenRootOnly(t *testing.T) {
	if rows := flatten(optree.Aggregate("model", nil)); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestWriteRows(t *testing.T) {
	var b bytes.Buffer
	if err := writeRows(&b, sampleDump()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(lines))
	}
	want := `{"model":"model","name":"C","invocation_count":4,"total_duration_ns":10,"child_count":0,"children_duration_ns":0,"sequence_id":2,"parent_path":"#/0/1/"}`
	if diff := testutil.Diff(lines[2], want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
