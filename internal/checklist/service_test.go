package checklist

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/registry"
	"github.com/axisenergy/checklist/internal/store"
	"github.com/axisenergy/checklist/internal/subject"
	"github.com/axisenergy/checklist/internal/testutil"
)

const (
	deepOr = "or-deep-condition-case"
	data   = "data-conditions"
)

func testPrograms(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.WithLogger(slog.New(slog.DiscardHandler)))

	require.NoError(t, reg.Register(compiler.NewBuilder(deepOr, "Instrument OR deep condition case").
		Question("top", "Top", "A", "B").
		Question("seed-a", "Seed A", "Yes", "No").
		Question("seed-b", "Seed B", "Yes", "No").
		Question("logic-or", "Logic OR").
		When(ir.DefaultRole, ir.NamespaceInstrument, "top", "A", "seed-a").
		When(ir.DefaultRole, ir.NamespaceInstrument, "top", "B", "seed-b").
		When(ir.DefaultRole, ir.NamespaceInstrument, "seed-a", "Yes", "logic-or").
		When(ir.DefaultRole, ir.NamespaceInstrument, "seed-b", "Yes", "logic-or").
		OnePass("logic-or").
		MustBuild()))

	require.NoError(t, reg.Register(compiler.NewBuilder(data, "REM conditions").
		Question("home-type", "Home type").
		Question("bedroom-ventilation", "Bedroom ventilation").
		When(ir.DefaultRole, ir.NamespaceRem, "floorplan.remrate_target.bedroom_count", compiler.Gt(2), "bedroom-ventilation").
		MustBuild()))
	return reg
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithIDGenerator(testutil.NewSequentialIDGenerator("eval")),
	}, opts...)
	svc, err := New(context.Background(), openStore(t), testPrograms(t), opts...)
	require.NoError(t, err)
	return svc
}

func answerText(t *testing.T, svc *Service, program, measure, text string) ir.Answer {
	t.Helper()
	a, err := svc.Answer(context.Background(), AnswerRequest{
		SubjectID: "home-1",
		Program:   program,
		MeasureID: measure,
		Text:      text,
	})
	require.NoError(t, err)
	return a
}

func TestAnswer_ChainActivates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	top := answerText(t, svc, deepOr, "top", "A")
	assert.Equal(t, int64(1), top.Seq)
	assert.Equal(t, ir.IRString("A"), top.Value)

	seed := answerText(t, svc, deepOr, "seed-a", "Yes")
	assert.Equal(t, int64(2), seed.Seq)

	res, err := svc.Evaluate(ctx, "home-1", deepOr, false)
	require.NoError(t, err)
	assert.Equal(t, engine.ActiveSet{"top", "seed-a", "logic-or"}, res.Activation.Active)
	assert.True(t, res.Activation.Converged)
	assert.Nil(t, res.Evaluation)
}

func TestAnswer_InactiveInstrumentRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Answer(ctx, AnswerRequest{
		SubjectID: "home-1", Program: deepOr, MeasureID: "seed-a", Text: "Yes",
	})
	require.Error(t, err)
	assert.True(t, engine.IsAnswerError(err))
	assert.Contains(t, err.Error(), "not active")

	history, err := svc.Store().AnswerHistory(ctx, "home-1", deepOr)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswer_InvalidValues(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  AnswerRequest
	}{
		{"unknown measure", AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "nope", Text: "A"}},
		{"not a response", AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "top", Text: "C"}},
		{"empty text", AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "top", Text: "  "}},
		{"typed value not a response", AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "top", Value: ir.IRInt(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Answer(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, engine.IsAnswerError(err), "got %v", err)
		})
	}
}

func TestAnswer_UnknownProgram(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Answer(context.Background(), AnswerRequest{
		SubjectID: "home-1", Program: "missing", MeasureID: "top", Text: "A",
	})
	assert.ErrorIs(t, err, registry.ErrUnknownProgram)
}

func TestAnswer_LatestValueWins(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	answerText(t, svc, deepOr, "top", "A")
	answerText(t, svc, deepOr, "seed-a", "Yes")
	answerText(t, svc, deepOr, "top", "B")

	res, err := svc.Evaluate(ctx, "home-1", deepOr, false)
	require.NoError(t, err)
	// seed-a keeps its answer but is no longer gated open.
	assert.Equal(t, engine.ActiveSet{"top", "seed-b"}, res.Activation.Active)
}

func TestEvaluate_SubjectDocument(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Evaluate(ctx, "home-1", data, false)
	require.NoError(t, err)
	assert.Equal(t, engine.ActiveSet{"home-type"}, res.Activation.Active,
		"without a document every data field is unavailable")

	doc := ir.IRObject{
		"floorplan": ir.IRObject{
			"remrate_target": ir.IRObject{"bedroom_count": ir.IRInt(3)},
		},
	}
	require.NoError(t, svc.PutSubject(ctx, "home-1", doc))

	res, err = svc.Evaluate(ctx, "home-1", data, false)
	require.NoError(t, err)
	assert.Equal(t, engine.ActiveSet{"home-type", "bedroom-ventilation"}, res.Activation.Active)
}

func TestEvaluate_Record(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	answerText(t, svc, deepOr, "top", "A")

	res, err := svc.Evaluate(ctx, "home-1", deepOr, true)
	require.NoError(t, err)
	require.NotNil(t, res.Evaluation)

	ev := res.Evaluation
	assert.Equal(t, "eval-0001", ev.ID)
	assert.Equal(t, int64(2), ev.Seq)
	assert.Equal(t, []string{"top", "seed-a"}, ev.Active)
	assert.Equal(t, res.AnswersHash, ev.AnswersHash)
	assert.Equal(t, res.Activation.ProgramHash, ev.ProgramHash)
	assert.True(t, ev.Converged)
	assert.Equal(t, ir.EngineVersion, ev.EngineVersion)

	stored, err := svc.Store().Evaluation(ctx, "eval-0001")
	require.NoError(t, err)
	assert.Equal(t, *ev, stored)
}

func TestEvaluate_SweepBound(t *testing.T) {
	svc := newTestService(t, WithMaxSweeps(1))
	ctx := context.Background()

	_, err := svc.Import(ctx, "home-1", deepOr, subject.Answers{
		"top":    ir.IRString("A"),
		"seed-a": ir.IRString("Yes"),
	}, "")
	require.NoError(t, err)

	res, err := svc.Evaluate(ctx, "home-1", deepOr, true)
	require.NoError(t, err, "a sweep bound hit is reported on the activation")
	assert.True(t, engine.IsIterationBoundError(res.Activation.Err))
	assert.Equal(t, engine.ActiveSet{"top", "seed-a"}, res.Activation.Active)
	assert.False(t, res.Evaluation.Converged)
	assert.Equal(t, 1, res.Evaluation.Sweeps)
}

func TestWithMaxSweeps_NonPositiveKeepsDefault(t *testing.T) {
	svc := newTestService(t, WithMaxSweeps(0))
	assert.Equal(t, engine.DefaultMaxSweeps, svc.maxSweeps)

	ctx := context.Background()
	_, err := svc.Import(ctx, "home-1", deepOr, subject.Answers{
		"top":    ir.IRString("A"),
		"seed-a": ir.IRString("Yes"),
	}, "")
	require.NoError(t, err)

	res, err := svc.Evaluate(ctx, "home-1", deepOr, false)
	require.NoError(t, err)
	assert.NoError(t, res.Activation.Err)
	assert.True(t, res.Activation.Active.Contains("logic-or"))
}

func TestImport_SkipsEligibility(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	recorded, err := svc.Import(ctx, "home-1", deepOr, subject.Answers{
		"seed-a": ir.IRString("Yes"),
		"top":    ir.IRString("A"),
	}, "importer")
	require.NoError(t, err)
	require.Len(t, recorded, 2)

	// Sorted measure order.
	assert.Equal(t, "seed-a", recorded[0].MeasureID)
	assert.Equal(t, "top", recorded[1].MeasureID)
	assert.Equal(t, "importer", recorded[0].RecordedBy)

	res, err := svc.Evaluate(ctx, "home-1", deepOr, false)
	require.NoError(t, err)
	assert.True(t, res.Activation.Active.Contains("logic-or"))
}

func TestImport_StopsAtInvalidAnswer(t *testing.T) {
	svc := newTestService(t)

	recorded, err := svc.Import(context.Background(), "home-1", deepOr, subject.Answers{
		"seed-a": ir.IRString("Yes"),
		"top":    ir.IRString("Z"),
	}, "")
	require.Error(t, err)
	assert.True(t, engine.IsAnswerError(err))
	assert.Len(t, recorded, 1)
}

func TestNew_ResumesClock(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	reg := testPrograms(t)

	first, err := New(ctx, st, reg, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	a, err := first.Answer(ctx, AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "top", Text: "A"})
	require.NoError(t, err)
	require.Equal(t, int64(1), a.Seq)

	second, err := New(ctx, st, reg, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	b, err := second.Answer(ctx, AnswerRequest{SubjectID: "home-1", Program: deepOr, MeasureID: "seed-a", Text: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Seq)
}

func TestVerify_Reproduces(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	answerText(t, svc, deepOr, "top", "A")
	res, err := svc.Evaluate(ctx, "home-1", deepOr, true)
	require.NoError(t, err)

	// Later answers must not leak into the verification of an earlier snapshot.
	answerText(t, svc, deepOr, "seed-a", "Yes")

	v, err := svc.Verify(ctx, res.Evaluation.ID)
	require.NoError(t, err)
	assert.True(t, v.OK(), "diff: %s", v.Diff)
	assert.True(t, v.ProgramHashMatch)
	assert.False(t, v.SubjectChanged)
	assert.Equal(t, []string{"top", "seed-a"}, v.Active)
}

func TestVerify_DetectsMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	answerText(t, svc, deepOr, "top", "A")
	hash, err := ir.AnswersHash(ir.IRObject{"top": ir.IRString("A")})
	require.NoError(t, err)

	tampered := ir.Evaluation{
		ID:            "tampered",
		SubjectID:     "home-1",
		Program:       deepOr,
		ProgramHash:   "stale-hash",
		AnswersHash:   hash,
		Active:        []string{"top"},
		Sweeps:        0,
		Converged:     true,
		Seq:           50,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	require.NoError(t, svc.Store().RecordEvaluation(ctx, tampered))

	v, err := svc.Verify(ctx, "tampered")
	require.NoError(t, err)
	assert.False(t, v.OK())
	assert.False(t, v.ActiveMatch)
	assert.True(t, v.AnswersHashMatch)
	assert.False(t, v.ProgramHashMatch)
	assert.NotEmpty(t, v.Diff)
}

func TestVerify_SubjectChanged(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PutSubject(ctx, "home-1", ir.IRObject{}))
	res, err := svc.Evaluate(ctx, "home-1", data, true)
	require.NoError(t, err)

	require.NoError(t, svc.PutSubject(ctx, "home-1", ir.IRObject{
		"floorplan": ir.IRObject{"remrate_target": ir.IRObject{"bedroom_count": ir.IRInt(5)}},
	}))

	v, err := svc.Verify(ctx, res.Evaluation.ID)
	require.NoError(t, err)
	assert.True(t, v.SubjectChanged)
	assert.False(t, v.ActiveMatch)
}

func TestVerifyChecklist_LogOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	answerText(t, svc, deepOr, "top", "A")
	_, err := svc.Evaluate(ctx, "home-1", deepOr, true)
	require.NoError(t, err)
	answerText(t, svc, deepOr, "seed-a", "Yes")
	_, err = svc.Evaluate(ctx, "home-1", deepOr, true)
	require.NoError(t, err)

	vs, err := svc.VerifyChecklist(ctx, "home-1", deepOr)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "eval-0001", vs[0].Evaluation.ID)
	assert.Equal(t, "eval-0002", vs[1].Evaluation.ID)
	for _, v := range vs {
		assert.True(t, v.OK(), "%s diff: %s", v.Evaluation.ID, v.Diff)
	}
}

func TestVerify_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Verify(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
