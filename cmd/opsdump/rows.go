package main

import (
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/getsentry/opstractor/internal/optree"
)

// row describes one node of a dump, without its children.
type row struct {
	Model              string `json:"model"`
	Name               string `json:"name"`
	InvocationCount    uint64 `json:"invocation_count"`
	TotalDurationNS    int64  `json:"total_duration_ns"`
	ChildCount         int    `json:"child_count"`
	ChildrenDurationNS int64  `json:"children_duration_ns"`
	// SequenceID numbers the nodes under the root in depth-first order.
	SequenceID int `json:"sequence_id"`
	// ParentPath is the path of sequence ids from the root to the parent.
	ParentPath string `json:"parent_path"`
}

func flatten(root *optree.Op) []row {
	var rows []row
	flattenChildren(root.Name(), root, "#/", &rows)
	return rows
}

func flattenChildren(model string, parent *optree.Op, parentPath string, rows *[]row) {
	for _, op := range parent.Children() {
		var childrenDuration int64
		for _, c := range op.Children() {
			childrenDuration += c.Duration().Nanoseconds()
		}
		id := len(*rows)
		*rows = append(*rows, row{
			Model:              model,
			Name:               op.Name(),
			InvocationCount:    op.InvocationCount(),
			TotalDurationNS:    op.Duration().Nanoseconds(),
			ChildCount:         len(op.Children()),
			ChildrenDurationNS: childrenDuration,
			SequenceID:         id,
			ParentPath:         parentPath,
		})
		flattenChildren(model, op, parentPath+strconv.Itoa(id)+"/", rows)
	}
}

// writeRows writes one JSON object per row.
func writeRows(w io.Writer, root *optree.Op) error {
	enc := gojson.NewEncoder(w)
	for _, r := range flatten(root) {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
