// Package export persists solve results as a text report or as JSON.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"q.log/lpsolver/model"
)

// ErrNoResult is returned for a report without a result.
var ErrNoResult = errors.New("export: report has no result")

// Report is a result together with the model names needed to read it.
type Report struct {
	Model     string
	Direction model.Direction
	Variables []string
	Result    *model.Result
}

// NewReport returns the report of r, a result of solving m.
func NewReport(m *model.Model, r *model.Result) Report {
	rep := Report{Model: m.Name, Direction: m.Direction, Result: r}
	for _, v := range m.Variables {
		rep.Variables = append(rep.Variables, v.Name)
	}
	return rep
}

func (rep Report) name(i int) string {
	if i < len(rep.Variables) {
		return rep.Variables[i]
	}
	return fmt.Sprintf("x%d", i+1)
}

func (rep Report) diagnostics() []string {
	keys := make([]string, 0, len(rep.Result.Diagnostics))
	for k := range rep.Result.Diagnostics {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WriteText writes rep with values rounded to three decimals.
func WriteText(w io.Writer, rep Report) error {
	r := rep.Result
	if r == nil {
		return ErrNoResult
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model: %s (%s)\n", rep.Model, rep.Direction)
	fmt.Fprintf(&sb, "Algorithm: %s\n", r.Algorithm)
	fmt.Fprintf(&sb, "Status: %s\n", r.Status)
	if r.Status == model.StatusOptimal {
		fmt.Fprintf(&sb, "Objective: %.3f\n", r.Objective)
		sb.WriteString("Variables:\n")
		for i, x := range r.X {
			fmt.Fprintf(&sb, "  %s = %.3f\n", rep.name(i), x)
		}
	}
	fmt.Fprintf(&sb, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(&sb, "Elapsed: %s\n", r.Elapsed)
	if keys := rep.diagnostics(); len(keys) > 0 {
		sb.WriteString("Diagnostics:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, r.Diagnostics[k])
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Struct returns rep as a protobuf Struct. Objective and variable values
// are only present for optimal results.
func Struct(rep Report) (*structpb.Struct, error) {
	r := rep.Result
	if r == nil {
		return nil, ErrNoResult
	}
	fields := map[string]any{
		"model":      rep.Model,
		"direction":  rep.Direction.String(),
		"algorithm":  r.Algorithm,
		"status":     r.Status.String(),
		"iterations": r.Iterations,
		"elapsed":    r.Elapsed.String(),
	}
	if r.Status == model.StatusOptimal && !math.IsInf(r.Objective, 0) && !math.IsNaN(r.Objective) {
		fields["objective"] = r.Objective
		vars := make(map[string]any, len(r.X))
		for i, x := range r.X {
			vars[rep.name(i)] = x
		}
		fields["variables"] = vars
	}
	if len(r.Diagnostics) > 0 {
		diag := make(map[string]any, len(r.Diagnostics))
		for k, v := range r.Diagnostics {
			diag[k] = v
		}
		fields["diagnostics"] = diag
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return s, nil
}

// MarshalJSON encodes rep as indented JSON.
func MarshalJSON(rep Report) ([]byte, error) {
	s, err := Struct(rep)
	if err != nil {
		return nil, err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return b, nil
}

// WriteFile writes rep to path, as JSON when the extension is .json and as
// text otherwise.
func WriteFile(path string, rep Report) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := MarshalJSON(rep)
		if err != nil {
			return err
		}
		data = b
	} else {
		var sb strings.Builder
		if err := WriteText(&sb, rep); err != nil {
			return err
		}
		data = []byte(sb.String())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
