package session

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/opstractor/internal/optree"
	"github.com/getsentry/opstractor/internal/opwriter"
)

const (
	// DefaultThreshold is the distinct ratio under which a session is
	// considered converged.
	DefaultThreshold = 0.005

	// ModelName is the name of the synthetic root written on report.
	ModelName = "model"
)

type (
	Config struct {
		// Threshold defaults to DefaultThreshold. A negative threshold
		// disables convergence, the session then only reports on Report.
		Threshold float64
		// Filter defaults to Identity.
		Filter Filter
		// Format defaults to opwriter.FormatFlamegraph.
		Format opwriter.Format
		// Output defaults to os.Stderr.
		Output io.Writer
		// Exit is called once the report is written on convergence, outside
		// of the session lock. It defaults to os.Exit.
		Exit func(code int)
	}

	Stats struct {
		DistinctRoots int     `json:"distinct_roots"`
		TotalRoots    int     `json:"total_roots"`
		Ratio         float64 `json:"ratio"`
		Reported      bool    `json:"reported"`
	}

	// Session aggregates the root call trees completed by its tracers into a
	// set of structurally distinct trees, until the share of new shapes
	// drops under the threshold.
	Session struct {
		threshold float64
		filter    Filter
		format    opwriter.Format
		output    io.Writer
		writer    opwriter.Writer
		exit      func(int)
		tracer    *Tracer

		mu            sync.Mutex
		distinctRoots []*optree.Op
		totalRoots    int
		reported      bool
		err           error
	}
)

func New(cfg Config) (*Session, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Filter == nil {
		cfg.Filter = Identity
	}
	if cfg.Format == "" {
		cfg.Format = opwriter.FormatFlamegraph
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	w, err := opwriter.New(cfg.Format, cfg.Output)
	if err != nil {
		return nil, err
	}
	s := &Session{
		threshold: cfg.Threshold,
		filter:    cfg.Filter,
		format:    cfg.Format,
		output:    cfg.Output,
		writer:    w,
		exit:      cfg.Exit,
	}
	s.tracer = s.NewTracer()
	return s, nil
}

// NewTracer returns a tracer with its own call stack, for one thread of
// control.
func (s *Session) NewTracer() *Tracer {
	return &Tracer{session: s}
}

// OnEnter records a call on the default tracer. Hosts calling from several
// threads need a tracer per thread instead.
func (s *Session) OnEnter(name string, scope optree.Scope, token any) {
	s.tracer.OnEnter(name, scope, token)
}

// OnExit completes a call on the default tracer.
func (s *Session) OnExit(d time.Duration, token any) error {
	return s.tracer.OnExit(d, token)
}

func (s *Session) finalize(root *optree.Op) {
	root = s.filter(root)
	if root == nil {
		return
	}
	if code, reported := s.add(root); reported {
		s.exit(code)
	}
}

// add folds root into the distinct roots and writes the report once they
// converge, returning the exit code if it did.
func (s *Session) add(root *optree.Op) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reported || s.err != nil {
		return 0, false
	}

	s.totalRoots++
	merged := false
	for _, distinct := range s.distinctRoots {
		if !distinct.StructurallyEqual(root) {
			continue
		}
		if err := distinct.Merge(root); err != nil {
			log.Error().Err(err).Str("root", root.Name()).Msg("can't merge call tree")
		}
		merged = true
		break
	}
	if !merged {
		s.distinctRoots = append(s.distinctRoots, root)
	}

	ratio := s.ratio()
	log.Debug().
		Str("root", root.Name()).
		Bool("merged", merged).
		Int("distinct_roots", len(s.distinctRoots)).
		Int("total_roots", s.totalRoots).
		Float64("ratio", ratio).
		Msg("root call tree finalized")

	if ratio >= s.threshold {
		return 0, false
	}

	s.reported = true
	if err := s.writeReport(); err != nil {
		log.Error().Err(err).Msg("can't write report")
		return 1, true
	}
	log.Info().
		Int("distinct_roots", len(s.distinctRoots)).
		Int("total_roots", s.totalRoots).
		Float64("ratio", ratio).
		Msg("call trees converged")
	return 0, true
}

// Report writes the aggregated call trees, unless they were already written
// on convergence or by a previous call. Roots completed afterwards are
// ignored. An aborted session reports nothing and returns the abort error.
func (s *Session) Report() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if s.reported {
		return nil
	}
	s.reported = true
	return s.writeReport()
}

// Abort stops the session after a fatal error: roots completed afterwards
// are dropped and nothing is reported. Only the first error is kept.
func (s *Session) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.err = err
	}
}

// Err returns the error the session was aborted with, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// writeReport writes the aggregate to the output. Text documents end with a
// newline so they stay on their own line when the output is shared.
func (s *Session) writeReport() error {
	if err := s.writer.Write(s.aggregate()); err != nil {
		return err
	}
	if s.format == opwriter.FormatBinary {
		return nil
	}
	_, err := io.WriteString(s.output, "\n")
	return err
}

// WriteSnapshot writes the current aggregated call trees to w in format f,
// without ending the session.
func (s *Session) WriteSnapshot(w io.Writer, f opwriter.Format) error {
	var b bytes.Buffer
	ow, err := opwriter.New(f, &b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	err = ow.Write(s.aggregate())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = b.WriteTo(w)
	return err
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		DistinctRoots: len(s.distinctRoots),
		TotalRoots:    s.totalRoots,
		Ratio:         s.ratio(),
		Reported:      s.reported,
	}
}

// Roots returns the distinct root call trees aggregated so far. The trees
// are shared with the session and must not be modified.
func (s *Session) Roots() []*optree.Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	roots := make([]*optree.Op, len(s.distinctRoots))
	copy(roots, s.distinctRoots)
	return roots
}

func (s *Session) ratio() float64 {
	if s.totalRoots == 0 {
		return 0
	}
	return float64(len(s.distinctRoots)) / float64(s.totalRoots)
}

func (s *Session) aggregate() *optree.Op {
	return optree.Aggregate(ModelName, s.distinctRoots)
}
