package checklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/registry"
	"github.com/axisenergy/checklist/internal/store"
	"github.com/axisenergy/checklist/internal/subject"
)

// Clock stamps writes with seq numbers. *engine.Clock is the production
// clock; every run of a test scenario starts a fresh one at seq 0.
type Clock interface {
	Next() int64
}

// Service records answers and evaluates checklists.
//
// Writes are stamped from a single Clock; use one Service per database.
type Service struct {
	store    *store.Store
	programs *registry.Registry
	clock    Clock
	ids      engine.IDGenerator
	logger   *slog.Logger

	maxSweeps int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. It is also handed to every engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator sets the evaluation id generator.
// Default: engine.UUIDv7Generator.
func WithIDGenerator(ids engine.IDGenerator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// WithClock sets the logical clock. By default the clock resumes after the
// highest seq already in the store.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithMaxSweeps sets the activation sweep bound. Values below one keep
// engine.DefaultMaxSweeps.
func WithMaxSweeps(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSweeps = n
		}
	}
}

// New creates a Service over st and programs.
func New(ctx context.Context, st *store.Store, programs *registry.Registry, opts ...Option) (*Service, error) {
	s := &Service{
		store:     st,
		programs:  programs,
		ids:       engine.UUIDv7Generator{},
		logger:    slog.Default(),
		maxSweeps: engine.DefaultMaxSweeps,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		s.clock = engine.NewClockAt(last)
	}
	return s, nil
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Programs returns the program registry.
func (s *Service) Programs() *registry.Registry {
	return s.programs
}

// PutSubject stores the data document for a subject.
func (s *Service) PutSubject(ctx context.Context, id string, doc ir.IRObject) error {
	seq := s.clock.Next()
	if err := s.store.PutSubject(ctx, id, doc, seq); err != nil {
		return err
	}
	s.logger.Debug("subject stored", "subject", id, "seq", seq)
	return nil
}

// AnswerRequest is one answer submission. Exactly one of Value and Text is
// used: Text is parsed against the instrument's type when Value is nil.
type AnswerRequest struct {
	SubjectID  string
	Program    string
	MeasureID  string
	Value      ir.IRValue
	Text       string
	RecordedBy string
}

// Answer validates and records one answer.
//
// The instrument must exist in the program and be active given the answers
// already recorded; otherwise an *engine.AnswerError is returned and nothing
// is stored.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (ir.Answer, error) {
	prog, inst, err := s.instrument(req.Program, req.MeasureID)
	if err != nil {
		return ir.Answer{}, err
	}
	value, err := answerValue(inst, req)
	if err != nil {
		return ir.Answer{}, err
	}

	subj, answers, err := s.state(ctx, req.SubjectID, req.Program)
	if err != nil {
		return ir.Answer{}, err
	}
	act := prog.Engine(s.engineOptions()...).Activate(subj, answers)
	if !act.Active.Contains(inst.ID) {
		return ir.Answer{}, &engine.AnswerError{
			MeasureID: inst.ID,
			Value:     ir.Display(value),
			Reason:    "instrument is not active",
		}
	}

	return s.record(ctx, req, value)
}

// Import records a set of answers without the eligibility check, in sorted
// measure order. Values are still validated against their instruments; the
// first invalid answer stops the import.
func (s *Service) Import(ctx context.Context, subjectID, program string, answers subject.Answers, recordedBy string) ([]ir.Answer, error) {
	recorded := make([]ir.Answer, 0, len(answers))
	for _, id := range answers.MeasureIDs() {
		req := AnswerRequest{
			SubjectID:  subjectID,
			Program:    program,
			MeasureID:  id,
			Value:      answers[id],
			RecordedBy: recordedBy,
		}
		_, inst, err := s.instrument(program, id)
		if err != nil {
			return recorded, err
		}
		value, err := answerValue(inst, req)
		if err != nil {
			return recorded, err
		}
		a, err := s.record(ctx, req, value)
		if err != nil {
			return recorded, err
		}
		recorded = append(recorded, a)
	}
	return recorded, nil
}

func (s *Service) record(ctx context.Context, req AnswerRequest, value ir.IRValue) (ir.Answer, error) {
	a := ir.Answer{
		SubjectID:  req.SubjectID,
		Program:    req.Program,
		MeasureID:  req.MeasureID,
		Value:      value,
		Seq:        s.clock.Next(),
		RecordedBy: req.RecordedBy,
	}
	if err := s.store.RecordAnswer(ctx, a); err != nil {
		return ir.Answer{}, err
	}
	s.logger.Info("answer recorded",
		"subject", a.SubjectID,
		"program", a.Program,
		"measure", a.MeasureID,
		"value", ir.Display(a.Value),
		"seq", a.Seq)
	return a, nil
}

func answerValue(inst ir.Instrument, req AnswerRequest) (ir.IRValue, error) {
	if req.Value == nil {
		return engine.ParseAnswer(inst, req.Text)
	}
	if err := engine.ValidateAnswer(inst, req.Value); err != nil {
		return nil, err
	}
	return req.Value, nil
}

func (s *Service) instrument(slug, measureID string) (*registry.Program, ir.Instrument, error) {
	prog, err := s.programs.Program(slug)
	if err != nil {
		return nil, ir.Instrument{}, err
	}
	inst, ok := prog.Spec.InstrumentByID(measureID)
	if !ok {
		return nil, ir.Instrument{}, &engine.AnswerError{
			MeasureID: measureID,
			Reason:    fmt.Sprintf("no such instrument in program %q", slug),
		}
	}
	return prog, inst, nil
}

// state loads the stored subject document and latest answers. A subject
// without a stored document evaluates with every data field unavailable.
func (s *Service) state(ctx context.Context, subjectID, program string) (subject.Node, subject.Answers, error) {
	doc, err := s.store.Subject(ctx, subjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}
	answers, err := s.store.LatestAnswers(ctx, subjectID, program)
	if err != nil {
		return nil, nil, err
	}
	return subject.NewObjectNode(doc), answers, nil
}

func (s *Service) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxSweeps(s.maxSweeps),
		engine.WithLogger(s.logger),
	}
}
